package fetcher

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"

	gerrors "github.com/lugondev/solana-guardian/internal/errors"
)

// classifyRPCError maps a solana-go client error onto the guardian taxonomy.
func classifyRPCError(what string, err error) error {
	if err == nil {
		return nil
	}

	var ge *gerrors.GuardianError
	if errors.As(err, &ge) {
		return err
	}

	if errors.Is(err, rpc.ErrNotFound) {
		return gerrors.NotFound(what)
	}

	if errors.Is(err, context.Canceled) {
		return gerrors.ErrContextCanceled.WithCause(err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return gerrors.RPCTimeout(what, err)
	}

	var httpErr *jsonrpc.HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.Code == http.StatusTooManyRequests:
			return gerrors.RPCRateLimited(what, err)
		case httpErr.Code >= http.StatusInternalServerError,
			httpErr.Code == http.StatusRequestTimeout:
			return gerrors.RPCTimeout(what, err)
		default:
			return gerrors.FetchFailed(what, err)
		}
	}

	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		return gerrors.FetchFailed(what, err).WithDetails(map[string]any{
			"rpc_code": rpcErr.Code,
		})
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return gerrors.RPCTimeout(what, err)
	}

	// Anything else came from the transport: connection resets, truncated
	// bodies, proxies returning HTML.
	return gerrors.RPCTimeout(what, err)
}

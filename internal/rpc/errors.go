package rpc

import "strings"

// TxError is a translated, human-readable transaction failure.
type TxError struct {
	Code    int
	Raw     string
	Message string
	Action  string
}

func (e *TxError) Error() string { return e.Message }

// ParseTxError matches common RPC/DEX failure strings against a
// human-readable message and suggested next action.
func ParseTxError(err error) *TxError {
	if err == nil {
		return nil
	}

	raw := err.Error()
	txErr := &TxError{Raw: raw}
	if rpcErr, ok := err.(*RPCError); ok {
		txErr.Code = rpcErr.Code
	}

	switch {
	case contains(raw, "no record of a prior credit"):
		txErr.Message, txErr.Action = "insufficient balance: wallet has 0 SOL", "fund wallet with SOL"
	case contains(raw, "insufficient funds"), contains(raw, "insufficient lamports"):
		txErr.Message, txErr.Action = "insufficient balance for trade + fees", "add more SOL to wallet"
	case contains(raw, "slippage") || contains(raw, "exceededslippage"):
		txErr.Message, txErr.Action = "slippage exceeded: price moved too much", "increase slippage_bps or retry"
	case contains(raw, "blockhash not found"), contains(raw, "block height exceeded"):
		txErr.Message, txErr.Action = "blockhash expired", "retry immediately with a fresh quote"
	case contains(raw, "429"), contains(raw, "rate limit"):
		txErr.Message, txErr.Action = "rate limited by RPC", "wait and retry"
	case contains(raw, "account not found"), contains(raw, "accountnotfound"):
		txErr.Message, txErr.Action = "required account missing", "token account may need to be created"
	case contains(raw, "compute budget exceeded"):
		txErr.Message, txErr.Action = "out of compute units", "increase compute unit limit"
	case contains(raw, "custom program error"), contains(raw, "0x1"):
		txErr.Message, txErr.Action = "DEX rejected the swap", "check token liquidity"
	case contains(raw, "connection refused"):
		txErr.Message, txErr.Action = "RPC connection failed", "check network connectivity"
	case contains(raw, "timeout"):
		txErr.Message, txErr.Action = "RPC timeout", "retry"
	case contains(raw, "simulation failed"):
		txErr.Message, txErr.Action = "simulation failed, would not land on chain", "check logs for specific reason"
	default:
		txErr.Message, txErr.Action = "transaction failed", "check raw error"
	}
	return txErr
}

// HumanError renders just the translated message.
func HumanError(err error) string {
	if err == nil {
		return ""
	}
	return ParseTxError(err).Message
}

// HumanErrorWithAction renders the translated message plus next action.
func HumanErrorWithAction(err error) string {
	if err == nil {
		return ""
	}
	txErr := ParseTxError(err)
	return txErr.Message + " -> " + txErr.Action
}

func contains(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

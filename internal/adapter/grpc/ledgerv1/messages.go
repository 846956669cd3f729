// Package ledgerv1 defines the slotledger.v1.LedgerService gRPC contract.
// Messages travel as JSON through the codec registered by this package.
package ledgerv1

// PostTransactionRequest posts a credit or debit.
type PostTransactionRequest struct {
	AccountID   int32  `json:"account_id"`
	Amount      int64  `json:"amount"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
}

// PostTransactionResponse is the account state after the post.
type PostTransactionResponse struct {
	SequenceID uint32 `json:"sequence_id"`
	Balance    int64  `json:"balance"`
	Limit      int64  `json:"limit"`
}

// GetStatementRequest asks for the statement of one account.
type GetStatementRequest struct {
	AccountID int32 `json:"account_id"`
}

// Transaction is one statement entry.
type Transaction struct {
	SequenceID  uint32 `json:"sequence_id"`
	Amount      int64  `json:"amount"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
	CreatedAt   int64  `json:"created_at"` // unix seconds
}

// GetStatementResponse carries the balance and latest transactions,
// newest first.
type GetStatementResponse struct {
	AccountID    int32          `json:"account_id"`
	Balance      int64          `json:"balance"`
	Limit        int64          `json:"limit"`
	StatementAt  int64          `json:"statement_at"` // unix seconds
	Transactions []*Transaction `json:"transactions"`
}

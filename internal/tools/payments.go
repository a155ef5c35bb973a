package tools

import (
	"context"
)

// Payment is one row of the payments table.
type Payment struct {
	TransactionID string
	CustomerID    string
	Amount        float64
	Date          string
	Status        string
}

// DefaultPayments is the sample payments table used by the payment-status scenario.
var DefaultPayments = []Payment{
	{TransactionID: "T1001", CustomerID: "C001", Amount: 125.50, Date: "2021-10-05", Status: "Paid"},
	{TransactionID: "T1002", CustomerID: "C002", Amount: 89.99, Date: "2021-10-06", Status: "Unpaid"},
	{TransactionID: "T1003", CustomerID: "C003", Amount: 120.00, Date: "2021-10-07", Status: "Paid"},
	{TransactionID: "T1004", CustomerID: "C002", Amount: 54.30, Date: "2021-10-05", Status: "Paid"},
	{TransactionID: "T1005", CustomerID: "C001", Amount: 210.20, Date: "2021-10-08", Status: "Pending"},
}

const errTransactionNotFound = "transaction id not found."

// PaymentLookup is the argument object shared by both payment tools.
type PaymentLookup struct {
	TransactionID string `json:"transaction_id" jsonschema_description:"The transaction id."`
}

// PaymentStore is a read-only, in-memory index of payments by transaction id.
type PaymentStore struct {
	byID map[string]Payment
}

// NewPaymentStore indexes rows by transaction id. Later rows win on duplicates.
func NewPaymentStore(rows []Payment) *PaymentStore {
	byID := make(map[string]Payment, len(rows))
	for _, r := range rows {
		byID[r.TransactionID] = r
	}
	return &PaymentStore{byID: byID}
}

// Status returns {"status": ...} or {"error": "transaction id not found."}.
func (s *PaymentStore) Status(_ context.Context, in PaymentLookup) (map[string]string, error) {
	p, ok := s.byID[in.TransactionID]
	if !ok {
		return map[string]string{"error": errTransactionNotFound}, nil
	}
	return map[string]string{"status": p.Status}, nil
}

// Date returns {"date": ...} or {"error": "transaction id not found."}.
func (s *PaymentStore) Date(_ context.Context, in PaymentLookup) (map[string]string, error) {
	p, ok := s.byID[in.TransactionID]
	if !ok {
		return map[string]string{"error": errTransactionNotFound}, nil
	}
	return map[string]string{"date": p.Date}, nil
}

// NewPaymentStatusTool returns the retrieve_payment_status tool backed by s.
func NewPaymentStatusTool(s *PaymentStore) *FuncTool[PaymentLookup, map[string]string] {
	return NewFunc(string(ToolPaymentStatus), "Get payment status of a transaction", s.Status)
}

// NewPaymentDateTool returns the retrieve_payment_date tool backed by s.
func NewPaymentDateTool(s *PaymentStore) *FuncTool[PaymentLookup, map[string]string] {
	return NewFunc(string(ToolPaymentDate), "Get payment date of a transaction", s.Date)
}

package domain

// Applicant is the owning entity a statement is ingested for. It lives in the
// remote record store; this service only creates it, attaches the raw statement
// text and associates transactions and indicators with it.
type Applicant struct {
	ID                     string                 `json:"id,omitempty"`
	Name                   string                 `json:"name,omitempty"`
	BankStatementPDFPath   string                 `json:"bank_statement_pdf_path,omitempty"`
	RawBankStatementTxt    string                 `json:"raw_bank_statement_txt,omitempty"`
	Transactions           []Transaction          `json:"transactions,omitempty"`
	KeyFinancialIndicators *KeyFinancialIndicator `json:"key_financial_indicators,omitempty"`
}

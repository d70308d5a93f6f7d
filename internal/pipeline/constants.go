package pipeline

// Default values for statement ingestion.
const (
	// ApplicantNamePrefix prefixes the generated applicant name: "Applicant-<uuid>".
	ApplicantNamePrefix = "Applicant-"

	// PDFContentType is the only accepted upload media type.
	PDFContentType = "application/pdf"

	// SuccessMessage is returned for every completed run.
	SuccessMessage = "Bank statement processed and transactions extracted successfully"
)

// Record field names produced by the extraction prompt.
const (
	FieldDate            = "date"
	FieldDescription     = "description"
	FieldTransactionType = "transaction_type"
	FieldAmount          = "amount"
	FieldBalance         = "balance"
	FieldCurrency        = "currency"
)

// RequiredFields is the header every model answer must carry.
var RequiredFields = []string{
	FieldDate,
	FieldDescription,
	FieldTransactionType,
	FieldAmount,
	FieldBalance,
	FieldCurrency,
}

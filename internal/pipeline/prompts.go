package pipeline

import "strings"

// TransactionExtractionPrompt is the system instruction sent with every statement.
var TransactionExtractionPrompt = buildExtractionPrompt()

func buildExtractionPrompt() string {
	var b strings.Builder
	b.WriteString("You are given an unstructured bank statement text from any region, in any currency ")
	b.WriteString("(e.g., INR, USD, GBP), and with variable formatting. Your task is to extract the ")
	b.WriteString("transaction data and present it in CSV format. For each transaction, extract:\n\n")

	b.WriteString("- **Date**: The date of the transaction (formatted as YYYY-MM-DD).\n")
	b.WriteString("- **Description**: The transaction description or payee. Keep it inside double quotes (\"\"). ")
	b.WriteString("If there are already double quotes in the description text, escape them by doubling the ")
	b.WriteString("quotes within the field. For example, the text He said \"Hello, world!\" is written as ")
	b.WriteString("\"He said \"\"Hello, world!\"\"\"\n")
	b.WriteString("- **Transaction_Type**: \"credit\" if money is coming into the account, or \"debit\" if money is going out.\n")
	b.WriteString("- **Amount**: The transaction amount as a positive number.\n")
	b.WriteString("- **Balance**: The account balance after the transaction (if available).\n")
	b.WriteString("- **Currency**: The currency used in the transaction (e.g., INR, USD, GBP).\n\n")

	b.WriteString("Format the extracted data as CSV with the following headers:\n\n")
	b.WriteString(strings.Join(RequiredFields, ","))
	b.WriteString("\n\n")

	b.WriteString("Only output the CSV data with one transaction per line and no additional text or explanations.\n")
	return b.String()
}

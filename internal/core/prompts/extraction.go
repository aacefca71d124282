package prompts

import (
	"fmt"
	"sort"
	"strings"
)

// ExtractionTemplate describes the fields pulled from one document type.
type ExtractionTemplate struct {
	DocumentType string
	Subject      string
	Purpose      string
	Fields       []string
	Output       string
	Rules        []string
}

var commonRules = []string{
	"Dates must be returned in YYYY-MM-DD format.",
	"If a field is missing or unreadable, use null.",
	"Only return the structured JSON, no explanation or extra content.",
}

var extractionTemplates = map[string]ExtractionTemplate{
	"payslip": {
		DocumentType: "payslip",
		Subject:      "a UK payslip",
		Purpose:      "salary verification and compliance checks",
		Fields: []string{
			"employee_name", "employer_name", "employee_id", "employee_address", "employer_address",
			"tax_code", "payslip_date", "pay_period_start", "pay_period_end",
			"payment_frequency (monthly or weekly)", "basic_pay", "net_pay", "gross_pay",
			"salary_components: list of {name, amount} (bonus, overtime, allowance)",
			"ni_contribution (National Insurance)", "tax_deduction",
			"other_deductions: list of {name, amount}",
		},
		Output: `{
  "employee_name": "", "employer_name": "", "employee_id": "", "employee_address": "", "employer_address": "",
  "tax_code": "", "payslip_date": "", "pay_period_start": "", "pay_period_end": "", "payment_frequency": "",
  "basic_pay": "", "net_pay": "", "gross_pay": "",
  "salary_components": [{"name": "", "amount": ""}],
  "ni_contribution": "", "tax_deduction": "",
  "other_deductions": [{"name": "", "amount": ""}]
}`,
		Rules: []string{`All monetary values should be numeric strings (e.g. "1550.00").`},
	},
	"passport": {
		DocumentType: "passport",
		Subject:      "a passport identity page",
		Purpose:      "identity verification",
		Fields: []string{
			"full_name", "surname", "given_names", "passport_number", "nationality", "date_of_birth",
			"place_of_birth", "sex", "date_of_issue", "date_of_expiry", "issuing_authority",
			"passport_type", "country_code", "mrz_line_1", "mrz_line_2",
		},
		Output: `{
  "full_name": "", "surname": "", "given_names": "", "passport_number": "", "nationality": "",
  "date_of_birth": "", "place_of_birth": "", "sex": "", "date_of_issue": "", "date_of_expiry": "",
  "issuing_authority": "", "passport_type": "", "country_code": "", "mrz_line_1": "", "mrz_line_2": ""
}`,
		Rules: []string{"Copy MRZ lines exactly, including filler '<' characters."},
	},
	"bank_statement": {
		DocumentType: "bank_statement",
		Subject:      "a UK bank statement",
		Purpose:      "income verification against salary credits",
		Fields: []string{
			"account_holder_name", "account_holder_address", "bank_name", "account_number", "sort_code",
			"statement_start_date", "statement_end_date",
			"salary_credits: list of {date, amount, from, description}",
		},
		Output: `{
  "account_holder_name": "", "account_holder_address": "", "bank_name": "", "account_number": "", "sort_code": "",
  "statement_start_date": "", "statement_end_date": "",
  "salary_credits": [{"date": "", "amount": "", "from": "", "description": ""}]
}`,
		Rules: []string{"Only include credits that look like salary or wage payments."},
	},
	"driving_license": {
		DocumentType: "driving_license",
		Subject:      "a UK photocard driving licence",
		Purpose:      "identity and address verification",
		Fields: []string{
			"surname", "first_name", "date_of_birth", "place_of_birth", "date_of_issue", "date_of_expiry",
			"issuing_authority", "driver_number", "signature (present or absent)",
			"address: {line_1, city, postcode}", "entitlements: list of licence categories",
		},
		Output: `{
  "surname": "", "first_name": "", "date_of_birth": "", "place_of_birth": "", "date_of_issue": "",
  "date_of_expiry": "", "issuing_authority": "", "driver_number": "", "signature": "",
  "address": {"line_1": "", "city": "", "postcode": ""},
  "entitlements": []
}`,
	},
	"p60": {
		DocumentType: "p60",
		Subject:      "a UK P60 end of year certificate",
		Purpose:      "annual income verification",
		Fields: []string{
			"employee_details", "pay_and_income_tax_details: {previous_employments, current_employment, total_for_year, final_tax_code}",
			"national_insurance_contributions: list", "statutory_payments", "other_details", "employer_details",
		},
		Output: `{
  "employee_details": {},
  "pay_and_income_tax_details": {"previous_employments": {}, "current_employment": {}, "total_for_year": {}, "final_tax_code": ""},
  "national_insurance_contributions": [],
  "statutory_payments": {},
  "other_details": {},
  "employer_details": {}
}`,
		Rules: []string{`All monetary values should be numeric strings (e.g. "1550.00").`},
	},
}

// Spellings the model and older catalogs use for templated types.
var extractionAliases = map[string]string{
	"bank_statements":  "bank_statement",
	"driving_licence":  "driving_license",
	"driving_licenses": "driving_license",
	"payslips":         "payslip",
	"pay_slip":         "payslip",
}

// ExtractionFor returns the template for a normalized document type.
func ExtractionFor(documentType string) (ExtractionTemplate, bool) {
	if canonical, ok := extractionAliases[documentType]; ok {
		documentType = canonical
	}
	tpl, ok := extractionTemplates[documentType]
	return tpl, ok
}

// ExtractionTypes lists the document types that have a template.
func ExtractionTypes() []string {
	out := make([]string, 0, len(extractionTemplates))
	for k := range extractionTemplates {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (t ExtractionTemplate) Prompt() string {
	var fields strings.Builder
	for _, f := range t.Fields {
		fields.WriteString("- ")
		fields.WriteString(f)
		fields.WriteString("\n")
	}
	var rules strings.Builder
	for _, r := range append(append([]string{}, t.Rules...), commonRules...) {
		rules.WriteString("- ")
		rules.WriteString(r)
		rules.WriteString("\n")
	}

	return fmt.Sprintf(`You are a document information extraction assistant.

You will be given the page images of %s. Extract the details required for %s.

Extract the following fields:
%s
Output format:
%s

Instructions:
%s`, t.Subject, t.Purpose, fields.String(), t.Output, rules.String())
}

package services

import (
	"strings"

	"github.com/asturias-jnll/Capstone2-sub000/internal/models"
)

// Categorize classifies a monetary movement into the six balance buckets by
// case-insensitive keyword matching on the particulars text. It is pure and
// deterministic. Buckets are evaluated independently, so one memo can fill
// several buckets at once ("loan repayment" moves both cash-in-bank and
// loan receivables). Callers that supply explicit bucket values skip this
// entirely.
func Categorize(debit, credit float64, particulars string) models.BucketAmounts {
	memo := strings.ToLower(particulars)
	contains := func(keywords ...string) bool {
		for _, kw := range keywords {
			if strings.Contains(memo, kw) {
				return true
			}
		}
		return false
	}

	var b models.BucketAmounts

	switch {
	case contains("deposit", "savings"):
		b.CashInBank = credit
	case contains("loan", "disbursement"):
		b.CashInBank = -debit
	}

	// Repayments win over the loan keyword: "loan repayment" reduces the
	// receivable, it does not create one.
	switch {
	case contains("repayment", "payment"):
		b.LoanReceivables = -credit
	case contains("loan", "disbursement"):
		b.LoanReceivables = debit
	}

	if contains("savings", "deposit") {
		b.SavingsDeposits = credit
	}

	if contains("interest", "income") {
		b.InterestIncome = credit
	}

	if contains("service", "charge", "fee") {
		b.ServiceCharge = credit
	}

	if contains("sundries", "miscellaneous", "other") {
		b.Sundries = credit
	}

	return b
}

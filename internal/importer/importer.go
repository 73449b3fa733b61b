package importer

import (
	"io"

	"github.com/MrJamesThe3rd/expenso/internal/ledger"
)

type Bank string

const (
	BankCGD Bank = "cgd"
)

// Parser turns a bank export into transaction drafts. Drafts carry no
// category.
type Parser interface {
	Parse(r io.Reader) ([]ledger.TransactionParams, error)
}

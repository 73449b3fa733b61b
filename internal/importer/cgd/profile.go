package cgd

type amountLayout int

const (
	// One signed column, negative for debits.
	signedColumn amountLayout = iota
	// Separate unsigned debit and credit columns.
	debitCreditColumns
)

// Profile is the column layout of one CGD export.
type Profile struct {
	Name   string
	Date   string
	Desc   string
	Layout amountLayout
	Amount string
	Debit  string
	Credit string
}

func (p Profile) columns() []string {
	if p.Layout == debitCreditColumns {
		return []string{p.Date, p.Desc, p.Debit, p.Credit}
	}

	return []string{p.Date, p.Desc, p.Amount}
}

// Tried in order; the card export shares "Descrição" with the others so it
// goes first.
var profiles = []Profile{
	{Name: "cartão", Date: "Data", Desc: "Descrição", Layout: debitCreditColumns, Debit: "Débito", Credit: "Crédito"},
	{Name: "extrato", Date: "Data mov.", Desc: "Descrição", Layout: signedColumn, Amount: "Movimento"},
	{Name: "conta", Date: "Data mov.", Desc: "Descrição", Layout: signedColumn, Amount: "Montante"},
}

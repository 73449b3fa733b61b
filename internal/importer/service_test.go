package importer_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/expenso/internal/importer"
	"github.com/MrJamesThe3rd/expenso/internal/ledger"
	"github.com/MrJamesThe3rd/expenso/internal/logging"
)

const export = `Data mov.;Descrição;Montante
30-01-2026;UBER TRIP;-12,40
29-01-2026;SALARY;1.500,00
28-01-2026;PINGO DOCE;-30,00
`

func TestService_Import(t *testing.T) {
	ctx := context.Background()
	suggester := importer.NewMockSuggester(gomock.NewController(t))

	suggester.EXPECT().Suggest(gomock.Any(), "UBER TRIP").Return("Transport", nil)
	suggester.EXPECT().Suggest(gomock.Any(), "SALARY").Return("", nil)
	suggester.EXPECT().Suggest(gomock.Any(), "PINGO DOCE").Return("", errors.New("store down"))

	svc := importer.NewService(suggester, logging.Discard())

	params, err := svc.Import(ctx, importer.BankCGD, strings.NewReader(export))
	require.NoError(t, err)
	require.Len(t, params, 3)

	assert.Equal(t, "Transport", params[0].Category)
	assert.Equal(t, ledger.KindDebit, params[0].Kind)
	assert.Empty(t, params[1].Category)
	assert.Equal(t, ledger.KindCredit, params[1].Kind)
	assert.Empty(t, params[2].Category)
}

func TestService_ImportWithoutSuggester(t *testing.T) {
	svc := importer.NewService(nil, logging.Discard())

	params, err := svc.Import(context.Background(), importer.BankCGD, strings.NewReader(export))
	require.NoError(t, err)
	assert.Len(t, params, 3)
}

func TestService_ImportErrors(t *testing.T) {
	type testCase struct {
		name string
		bank importer.Bank
		body string
		want string
	}

	tests := []testCase{
		{name: "unknown bank", bank: "bpi", body: export, want: "unknown bank"},
		{name: "unrecognised layout", bank: importer.BankCGD, body: "a;b;c\n1;2;3\n", want: "no matching CGD format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := importer.NewService(nil, logging.Discard())

			_, err := svc.Import(context.Background(), tt.bank, strings.NewReader(tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"dosh/internal/core"
)

// Format names a bank statement layout.
type Format string

const (
	FormatHSBC       Format = "hsbc"
	FormatEgg        Format = "egg"
	FormatNationwide Format = "nationwide"
	FormatYodlee     Format = "yodlee"
)

// Default account labels for layouts that do not carry one.
const (
	hsbcAccount = "HSBC"
	eggAccount  = "Egg Card"
)

var (
	ErrUnknownFormat = errors.New("unknown statement format")
	ErrMalformedRow  = errors.New("malformed statement row")
)

type parseFunc func(r io.Reader, rules *RuleSet) ([]core.Transaction, error)

var parsers = map[Format]parseFunc{
	FormatHSBC:       parseHSBC,
	FormatEgg:        parseEgg,
	FormatNationwide: parseNationwide,
	FormatYodlee:     parseYodlee,
}

// Formats lists the supported layouts.
func Formats() []Format {
	return []Format{FormatHSBC, FormatEgg, FormatNationwide, FormatYodlee}
}

func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := parsers[f]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
	return f, nil
}

// Parse reads one statement. Every returned transaction carries the
// Unknown category and tag, a mapped account name and its fingerprint.
func Parse(format Format, r io.Reader, rules *RuleSet) ([]core.Transaction, error) {
	parse, ok := parsers[format]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	txs, err := parse(r, rules)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", format, err)
	}
	return txs, nil
}

func newTransaction(date time.Time, description string, amount core.Money, account string) core.Transaction {
	tx := core.Transaction{
		Date:        date.Format(core.DateLayout),
		Description: strings.Join(strings.Fields(description), " "),
		Amount:      amount,
		Category:    core.UnknownCategory,
		Account:     account,
		NeedsWants:  core.Unknown,
	}
	tx.Fingerprint = tx.ComputeFingerprint()
	return tx
}

var amountRe = regexp.MustCompile(`-?\d[\d,]*(?:\.\d+)?`)

// parseMoney extracts the first number in s, so currency symbols and
// thousands separators are tolerated.
func parseMoney(s string) (core.Money, error) {
	m := amountRe.FindString(s)
	if m == "" {
		return core.Money{}, core.ErrInvalidAmount
	}
	return core.ParseAmount(strings.ReplaceAll(m, ",", ""))
}

func parseDate(s string, layouts ...string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range layouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w %q", core.ErrInvalidDate, s)
}

func rowError(line int, err error) error {
	return fmt.Errorf("line %d: %w: %w", line, ErrMalformedRow, err)
}

func newCSVReader(r io.Reader, comma rune) *csv.Reader {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	return cr
}

// parseHSBC reads "date,description,amount" rows with dd/mm/yyyy dates.
// Commas inside an unquoted description spill into extra fields.
func parseHSBC(r io.Reader, rules *RuleSet) ([]core.Transaction, error) {
	cr := newCSVReader(r, ',')
	account := rules.AccountName(hsbcAccount)

	var out []core.Transaction
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, rowError(line, err)
		}
		if len(rec) < 3 || strings.TrimSpace(strings.Join(rec, "")) == "" {
			continue
		}

		date, err := parseDate(rec[0], "02/01/2006", "2/1/2006", "02 Jan 2006")
		if err != nil {
			return nil, rowError(line, err)
		}
		amount, err := parseMoney(rec[len(rec)-1])
		if err != nil {
			return nil, rowError(line, err)
		}
		desc := strings.Join(rec[1:len(rec)-1], ", ")
		if rules.Ignored(desc) {
			continue
		}
		out = append(out, newTransaction(date, desc, amount, account))
	}
	return out, nil
}

var eggAmountRe = regexp.MustCompile(`\d[\d,]*\.\d\d`)

// parseEgg reads the tab separated card statement. Amounts are debits unless
// suffixed with CR.
func parseEgg(r io.Reader, rules *RuleSet) ([]core.Transaction, error) {
	cr := newCSVReader(r, '\t')
	account := rules.AccountName(eggAccount)

	var out []core.Transaction
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, rowError(line, err)
		}
		if len(rec) < 3 {
			continue
		}

		date, err := parseDate(rec[0], "02 Jan 2006", "2 Jan 2006")
		if err != nil {
			// headers and statement banners
			continue
		}
		raw := strings.TrimSpace(rec[2])
		m := eggAmountRe.FindString(raw)
		if m == "" {
			return nil, rowError(line, core.ErrInvalidAmount)
		}
		amount, err := core.ParseAmount(strings.ReplaceAll(m, ",", ""))
		if err != nil {
			return nil, rowError(line, err)
		}
		if !strings.HasSuffix(strings.ToUpper(raw), "CR") {
			amount.Cents = -amount.Cents
		}
		if rules.Ignored(rec[1]) {
			continue
		}
		out = append(out, newTransaction(date, rec[1], amount, account))
	}
	return out, nil
}

// parseNationwide reads the account export: an account name row, balance
// rows and a header, then "date,description,paid out,paid in,balance".
func parseNationwide(r io.Reader, rules *RuleSet) ([]core.Transaction, error) {
	cr := newCSVReader(r, ',')

	var (
		out     []core.Transaction
		account string
		inRows  bool
	)
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, rowError(line, err)
		}

		if line == 1 {
			if len(rec) < 2 || strings.TrimSpace(rec[1]) == "" {
				return nil, rowError(line, errors.New("missing account name"))
			}
			account = rules.AccountName(rec[1])
			continue
		}
		if !inRows {
			if len(rec) > 0 && strings.EqualFold(strings.TrimSpace(rec[0]), "Date") {
				inRows = true
			}
			continue
		}
		if len(rec) < 4 || strings.TrimSpace(rec[0]) == "" {
			continue
		}

		date, err := parseDate(rec[0], "02 Jan 2006", "2 Jan 2006", "02/01/2006")
		if err != nil {
			return nil, rowError(line, err)
		}
		var amount core.Money
		switch {
		case strings.TrimSpace(rec[2]) != "":
			amount, err = parseMoney(rec[2])
			amount.Cents = -amount.Abs().Cents
		case strings.TrimSpace(rec[3]) != "":
			amount, err = parseMoney(rec[3])
			amount = amount.Abs()
		default:
			err = core.ErrInvalidAmount
		}
		if err != nil {
			return nil, rowError(line, err)
		}
		if rules.Ignored(rec[1]) {
			continue
		}
		out = append(out, newTransaction(date, rec[1], amount, account))
	}
	return out, nil
}

// parseYodlee reads the aggregator export, which carries a header row. Rows
// whose account or description match an ignore pattern are dropped.
func parseYodlee(r io.Reader, rules *RuleSet) ([]core.Transaction, error) {
	cr := newCSVReader(r, ',')

	header, err := cr.Read()
	if err != nil {
		return nil, rowError(1, fmt.Errorf("read header: %w", err))
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, name := range []string{"Date", "Amount", "Original Description", "Account Name"} {
		if _, ok := col[name]; !ok {
			return nil, rowError(1, fmt.Errorf("missing column %q", name))
		}
	}
	field := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var out []core.Transaction
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, rowError(line, err)
		}
		if field(rec, "Date") == "" {
			continue
		}

		rawAccount := field(rec, "Account Name")
		desc := field(rec, "Original Description")
		if rules.Ignored(rawAccount, desc) {
			continue
		}

		date, err := parseDate(field(rec, "Date"), "02/01/2006", "2/1/2006")
		if err != nil {
			return nil, rowError(line, err)
		}
		amount, err := core.ParseAmount(strings.ReplaceAll(field(rec, "Amount"), ",", ""))
		if err != nil {
			return nil, rowError(line, err)
		}
		tx := newTransaction(date, desc, amount, rules.AccountName(rawAccount))
		tx.Split = field(rec, "Split Type")
		out = append(out, tx)
	}
	return out, nil
}

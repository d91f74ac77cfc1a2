package core

import "testing"

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		Date:        "2011-06-17",
		Description: "ACME INC.",
		Amount:      Money{Cents: -750},
		Account:     "HSBC",
		NeedsWants:  Wants,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name string
		mut  func(*Transaction)
		want error
	}{
		{"bad date", func(tx *Transaction) { tx.Date = "17/06/2011" }, ErrInvalidDate},
		{"empty description", func(tx *Transaction) { tx.Description = "  " }, ErrEmptyDescription},
		{"empty account", func(tx *Transaction) { tx.Account = "" }, ErrEmptyAccount},
		{"bad tag", func(tx *Transaction) { tx.NeedsWants = "Luxuries" }, ErrInvalidNeedsWants},
	}
	for _, tc := range cases {
		tx := good
		tc.mut(&tx)
		if err := tx.Validate(); err != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestTransactionIsDebit(t *testing.T) {
	if !(Transaction{Amount: Money{Cents: -1}}).IsDebit() {
		t.Fatalf("negative amount must be a debit")
	}
	if (Transaction{Amount: Money{Cents: 0}}).IsDebit() {
		t.Fatalf("zero amount is not a debit")
	}
}

func TestNeedsWantsIsValid(t *testing.T) {
	for _, n := range []NeedsWants{Needs, Wants, Savings, Unknown, Exempt} {
		if !n.IsValid() {
			t.Fatalf("%s should be valid", n)
		}
	}
	if NeedsWants("").IsValid() {
		t.Fatalf("empty tag should be invalid")
	}
}

func TestFingerprintIgnoresWhitespace(t *testing.T) {
	a := Fingerprint("2011-06-17", "ACME  INC.", Money{Cents: -750}, "HSBC")
	b := Fingerprint("2011-06-17", "ACME INC.\t", Money{Cents: -750}, "HSBC")
	if a != b {
		t.Fatalf("fingerprints differ: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected hex sha256, got %q", a)
	}
	if c := Fingerprint("2011-06-17", "ACME INC.", Money{Cents: -751}, "HSBC"); c == a {
		t.Fatal("different amounts must not share a fingerprint")
	}
}

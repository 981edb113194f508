package regexdetector

import (
	"testing"

	"pii-scrubber/internal/entity"
)

func typesOf(entities []entity.Entity) []entity.Type {
	types := make([]entity.Type, len(entities))
	for i, e := range entities {
		types[i] = e.Type
	}
	return types
}

func TestDetectEmailAndPhone(t *testing.T) {
	d := New(nil)
	text := "Email me at jane@example.com or 555-123-4567."
	got := d.Detect(text)
	if len(got) != 2 {
		t.Fatalf("want 2 entities, got %d: %+v", len(got), got)
	}
	for _, e := range got {
		if text[e.Start:e.End] != e.Text {
			t.Errorf("entity %+v: Text does not match source slice", e)
		}
		if e.Confidence != 1.0 || e.Method != entity.MethodRegex {
			t.Errorf("entity %+v: expected regex confidence=1.0", e)
		}
	}
}

func TestDetectRejectsEmailInsideLongerToken(t *testing.T) {
	d := New(nil)
	text := "notanemail@@user@example.com" // the address-shaped tail is preceded by '@', not a boundary char
	got := d.Detect(text)
	for _, e := range got {
		if e.Type == entity.Email {
			t.Errorf("unexpected email match inside longer token: %+v", e)
		}
	}
}

func TestDetectPhoneRequiresSeparatorOrPlus(t *testing.T) {
	d := New(nil)
	text := "order id 5551234567 is not a phone number"
	got := d.Detect(text)
	for _, e := range got {
		if e.Type == entity.Phone {
			t.Errorf("unexpected phone match with no separator: %+v", e)
		}
	}
}

func TestDetectSSN(t *testing.T) {
	d := New(nil)
	got := d.Detect("SSN: 123-45-6789")
	found := false
	for _, e := range got {
		if e.Type == entity.SSN && e.Text == "123-45-6789" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected SSN match, got %+v", got)
	}
}

func TestDetectCreditCardRequiresSixteenDigits(t *testing.T) {
	d := New(nil)
	got := d.Detect("Card: 4111-1111-1111-1111 and short 4111-1111-1111")
	count := 0
	for _, e := range got {
		if e.Type == entity.CreditCard {
			count++
		}
	}
	if count != 1 {
		t.Errorf("want 1 credit card match, got %d: %+v", count, got)
	}
}

func TestDetectIPAddressValidatesOctets(t *testing.T) {
	d := New(nil)
	got := d.Detect("Server at 192.168.1.1 but not 999.999.999.999")
	count := 0
	for _, e := range got {
		if e.Type == entity.IPAddress {
			count++
			if e.Text != "192.168.1.1" {
				t.Errorf("unexpected IP match: %q", e.Text)
			}
		}
	}
	if count != 1 {
		t.Errorf("want 1 IP match, got %d: %+v", count, got)
	}
}

func TestDetectZipCode(t *testing.T) {
	d := New(nil)
	got := d.Detect("Mail it to 90210 or 12345-6789")
	count := 0
	for _, e := range got {
		if e.Type == entity.ZipCode {
			count++
		}
	}
	if count != 2 {
		t.Errorf("want 2 ZIP matches, got %d: %+v", count, got)
	}
}

func TestDetectSortedByStart(t *testing.T) {
	d := New(nil)
	got := d.Detect("jane@example.com ... 555-123-4567 ... 123-45-6789")
	for i := 1; i < len(got); i++ {
		if got[i-1].Start > got[i].Start {
			t.Errorf("entities not sorted by Start: %+v", got)
		}
	}
}

func TestDetectNeverFailsOnEmptyInput(t *testing.T) {
	d := New(nil)
	if got := d.Detect(""); len(got) != 0 {
		t.Errorf("want no entities for empty input, got %+v", got)
	}
}

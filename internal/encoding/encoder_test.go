package encoding

import (
	"strings"
	"testing"
)

func TestFitAssignsSortedCodes(t *testing.T) {
	enc := Fit([]string{"B200", "A100", "B200", "C300"})

	classes := enc.Classes()
	want := []string{"A100", "B200", "C300"}
	if len(classes) != len(want) {
		t.Fatalf("got %d classes, want %d", len(classes), len(want))
	}
	for i, c := range want {
		if classes[i] != c {
			t.Errorf("class %d: got %q, want %q", i, classes[i], c)
		}
		code, err := enc.Transform(c)
		if err != nil {
			t.Fatalf("Transform(%q) failed: %v", c, err)
		}
		if code != i {
			t.Errorf("Transform(%q)=%d, want %d", c, code, i)
		}
	}
}

func TestBlankValuesMapToUnknown(t *testing.T) {
	enc := Fit([]string{"A100", "", "   "})

	classes := enc.Classes()
	if len(classes) != 2 {
		t.Fatalf("got %d classes, want 2", len(classes))
	}

	blank, err := enc.Transform("")
	if err != nil {
		t.Fatalf("Transform blank failed: %v", err)
	}
	unknown, err := enc.Transform(UnknownCategory)
	if err != nil {
		t.Fatalf("Transform %q failed: %v", UnknownCategory, err)
	}
	if blank != unknown {
		t.Errorf("blank code %d != UNKNOWN code %d", blank, unknown)
	}
}

func TestTransformRejectsUnseenCategory(t *testing.T) {
	enc := Fit([]string{"A100"})

	_, err := enc.Transform("Z999")
	if err == nil {
		t.Fatal("expected error for unseen category")
	}
	if !strings.Contains(err.Error(), "Z999") {
		t.Errorf("error %q does not name the value", err)
	}
}

func TestDimensionCodes(t *testing.T) {
	enc := FitDimensions(
		[]string{"A100", "B200"},
		[]string{"V1"},
		[]string{"M", "L"},
		[]string{"L1", ""},
	)

	sku, vendor, size, line, err := enc.Codes("B200", "V1", "M", "")
	if err != nil {
		t.Fatalf("Codes failed: %v", err)
	}
	if sku != 1 || vendor != 0 || size != 1 || line != 1 {
		t.Errorf("codes = (%d, %d, %d, %d), want (1, 0, 1, 1)", sku, vendor, size, line)
	}

	if _, _, _, _, err := enc.Codes("A100", "V2", "M", "L1"); err == nil {
		t.Fatal("expected error for unseen vendor")
	}
}

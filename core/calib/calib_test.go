package calib

import (
	"testing"

	"chargecode-go/errcode"
	"chargecode-go/x/mathx"
)

func TestDefaultTableIsValid(t *testing.T) {
	tab := DefaultIMaxB6()
	if err := tab.Validate(); err != nil {
		t.Fatalf("default table: %v", err)
	}
}

func TestCalibrateHitsReferencePoints(t *testing.T) {
	tab := DefaultIMaxB6()
	for ch := Channel(0); ch < NumChannels; ch++ {
		p := tab[ch]
		if got := tab.Calibrate(ch, p.Low.Raw); got != p.Low.Value {
			t.Errorf("%s low: got %d want %d", ch, got, p.Low.Value)
		}
		if got := tab.Calibrate(ch, p.High.Raw); got != p.High.Value {
			t.Errorf("%s high: got %d want %d", ch, got, p.High.Value)
		}
	}
}

func TestInverseRoundTrip(t *testing.T) {
	tab := DefaultIMaxB6()
	for ch := Channel(0); ch < NumChannels; ch++ {
		p := tab[ch]
		dr := int64(p.High.Raw) - int64(p.Low.Raw)
		dv := int64(p.High.Value) - int64(p.Low.Value)
		// One physical unit spans this many raw counts.
		tol := mathx.Abs(dr)/mathx.Abs(dv) + 1
		for r := 0; r <= 0xFFFF; r += 97 {
			v := tab.Calibrate(ch, uint16(r))
			back := tab.Inverse(ch, v)
			if d := mathx.Abs(int64(back) - int64(r)); d > tol {
				t.Fatalf("%s raw %d -> %d -> %d (tol %d)", ch, r, v, back, tol)
			}
		}
	}
}

func TestExtrapolation(t *testing.T) {
	p := Pair{Low: Point{Raw: 1000, Value: 100}, High: Point{Raw: 2000, Value: 200}}
	if got := p.Calibrate(3000); got != 300 {
		t.Fatalf("above range: %d", got)
	}
	if got := p.Calibrate(0); got != 0 {
		t.Fatalf("below range: %d", got)
	}
	if got := p.Inverse(-500); got != 0 {
		t.Fatalf("inverse must clamp to raw range, got %d", got)
	}
}

func TestValidateRejectsDegeneratePair(t *testing.T) {
	tab := DefaultIMaxB6()
	tab[Ismps].High.Raw = tab[Ismps].Low.Raw
	err := tab.Validate()
	if errcode.Of(err) != errcode.InvalidCalibration {
		t.Fatalf("want invalid_calibration, got %v", err)
	}
	if got := err.Error(); got != "calib.Validate: invalid_calibration: ismps: high.raw == low.raw" {
		t.Fatalf("message: %q", got)
	}
}

func TestLookupAndCells(t *testing.T) {
	ch, ok := Lookup("textern")
	if !ok || ch != Textern {
		t.Fatalf("Lookup: %v %v", ch, ok)
	}
	if _, ok := Lookup("nope"); ok {
		t.Fatal("unexpected match")
	}
	if Cell(0) != Vb1 || Cell(MaxBalanceCells-1) != Vb6 {
		t.Fatal("cell mapping")
	}
	if !IsmpsSet.IsSetpoint() || Vin.IsSetpoint() {
		t.Fatal("IsSetpoint")
	}
}

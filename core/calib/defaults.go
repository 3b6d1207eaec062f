package calib

var imaxB6 = [...]Pair{
	{Point{0, 0}, Point{52992, 24484}},       // vout_plus
	{Point{0, 0}, Point{52992, 24484}},       // vout_minus
	{Point{362, 50}, Point{10522, 1000}},     // ismps
	{Point{1090, 50}, Point{7744, 300}},      // idischarge
	{Point{0, 0}, Point{52992, 24484}},       // vout_mux
	{Point{20000, 2500}, Point{30000, 6500}}, // tintern
	{Point{0, 0}, Point{42432, 12440}},       // vin
	{Point{5884, 2280}, Point{11768, 6000}},  // textern
	{Point{0, 0}, Point{53628, 4332}},        // vb0
	{Point{0, 0}, Point{53628, 4332}},        // vb1
	{Point{0, 0}, Point{53696, 4216}},        // vb2
	{Point{0, 0}, Point{53569, 4099}},        // vb3
	{Point{0, 0}, Point{51648, 4013}},        // vb4
	{Point{0, 0}, Point{53696, 4062}},        // vb5
	{Point{0, 0}, Point{53155, 4093}},        // vb6
	{Point{355, 50}, Point{10520, 1000}},     // ismps_set
	{Point{390, 50}, Point{2895, 300}},       // idischarge_set
}

var _ Table = imaxB6

// DefaultIMaxB6 returns the factory table of the imaxB6 board.
func DefaultIMaxB6() Table { return imaxB6 }

package synth

// FMLink routes the output of oscillator Modulator into the frequency input
// of oscillator Carrier. Indices are 0-based.
type FMLink struct {
	Modulator int
	Carrier   int
}

// FMAlgorithm is one fixed FM wiring: modulation links plus the oscillators
// summed to the voice output.
type FMAlgorithm struct {
	Name    string
	Links   []FMLink
	Outputs []int
}

// FMModulationIndex is the gain applied to every FM link.
const FMModulationIndex = 20000

// Algorithms is the fixed FM algorithm table. Names use 1-based oscillator
// numbers; oscillator 1 always reaches the output.
var Algorithms = [8]FMAlgorithm{
	{
		Name:    "4>3>2>1",
		Links:   []FMLink{{3, 2}, {2, 1}, {1, 0}},
		Outputs: []int{0},
	},
	{
		Name:    "4 + 3>2>1",
		Links:   []FMLink{{2, 1}, {1, 0}},
		Outputs: []int{3, 0},
	},
	{
		Name:    "4 + (2+3)>1",
		Links:   []FMLink{{1, 0}, {2, 0}},
		Outputs: []int{3, 0},
	},
	{
		Name:    "(2+3+4)>1",
		Links:   []FMLink{{1, 0}, {2, 0}, {3, 0}},
		Outputs: []int{0},
	},
	{
		Name:    "(3+4)>2>1",
		Links:   []FMLink{{2, 1}, {3, 1}, {1, 0}},
		Outputs: []int{0},
	},
	{
		Name:    "4>3 + 2>1",
		Links:   []FMLink{{3, 2}, {1, 0}},
		Outputs: []int{2, 0},
	},
	{
		Name:    "4 + 3 + 2>1",
		Links:   []FMLink{{1, 0}},
		Outputs: []int{3, 2, 0},
	},
	{
		Name:    "4 + 3 + 2 + 1",
		Outputs: []int{3, 2, 1, 0},
	},
}

// AlgorithmNames lists the algorithm names in table order.
func AlgorithmNames() []string {
	names := make([]string, len(Algorithms))
	for i, a := range Algorithms {
		names[i] = a.Name
	}
	return names
}

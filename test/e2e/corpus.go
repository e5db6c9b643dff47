package e2e

import (
	"fmt"
	"strings"
)

// Lesson is one short course document. Content fits in a single chunk.
type Lesson struct {
	Name    string
	Topic   string
	Content string
}

// QueryTestCase is a query whose top passage must come from Lesson.
type QueryTestCase struct {
	Query  string
	Lesson string
}

// Corpus holds lessons and the queries that must find them.
type Corpus struct {
	Lessons   []Lesson
	TestCases []QueryTestCase
}

var lessonTopics = []struct {
	topic string
	fact  string
}{
	{"photosynthesis", "Photosynthesis converts light energy into glucose inside chloroplasts."},
	{"mitosis", "Mitosis divides one nucleus into two genetically identical nuclei."},
	{"meiosis", "Meiosis halves the chromosome number to produce gametes."},
	{"osmosis", "Osmosis moves water across a membrane toward higher solute concentration."},
	{"enzymes", "Enzymes lower the activation energy of biochemical reactions."},
	{"dna replication", "DNA replication is semi-conservative and copies each strand."},
	{"transcription", "Transcription builds messenger RNA from a DNA template."},
	{"translation", "Translation assembles amino acids in the order coded by mRNA."},
	{"respiration", "Cellular respiration releases energy by oxidizing glucose."},
	{"homeostasis", "Homeostasis keeps internal conditions within a narrow range."},
	{"natural selection", "Natural selection favours heritable traits that improve survival."},
	{"ecosystems", "Ecosystems cycle nutrients between producers, consumers and decomposers."},
	{"plate tectonics", "Plate tectonics explains earthquakes at moving lithosphere boundaries."},
	{"water cycle", "The water cycle moves water by evaporation, condensation and precipitation."},
	{"newton's laws", "Newton's second law states that force equals mass times acceleration."},
	{"ohm's law", "Ohm's law relates voltage, current and resistance in a circuit."},
	{"thermodynamics", "The first law of thermodynamics states that energy is conserved."},
	{"acids and bases", "Acids donate protons while bases accept them."},
	{"periodic table", "The periodic table orders elements by increasing atomic number."},
	{"chemical bonding", "Covalent bonds share electron pairs between atoms."},
}

// BuildCorpus returns one lesson per topic. Each lesson is queried by its own text since
// the mock embedder only matches identical strings exactly.
func BuildCorpus() *Corpus {
	c := &Corpus{}
	for i, lt := range lessonTopics {
		name := fmt.Sprintf("lesson%02d_%s.txt", i+1, strings.ReplaceAll(strings.ReplaceAll(lt.topic, " ", "_"), "'", ""))
		c.Lessons = append(c.Lessons, Lesson{Name: name, Topic: lt.topic, Content: lt.fact})
		c.TestCases = append(c.TestCases, QueryTestCase{Query: lt.fact, Lesson: name})
	}
	return c
}

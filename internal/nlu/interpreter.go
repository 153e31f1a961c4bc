package nlu

// Result is the outcome of one classification pass.
type Result struct {
	Intent   Intent   `json:"intent"`
	Entities Entities `json:"entities"`
}

// Interpreter runs intent classification and entity extraction over the same gazetteer.
type Interpreter struct {
	classifier *Classifier
	extractor  *Extractor
}

// NewInterpreter wires a classifier and an extractor to one shared gazetteer.
func NewInterpreter(g *Gazetteer) *Interpreter {
	if g == nil {
		g = DefaultGazetteer()
	}
	return &Interpreter{
		classifier: NewClassifier(g),
		extractor:  NewExtractor(g),
	}
}

func (i *Interpreter) Interpret(text string) Result {
	return Result{
		Intent:   i.classifier.Classify(text),
		Entities: i.extractor.Extract(text),
	}
}

func (i *Interpreter) Classifier() *Classifier { return i.classifier }

func (i *Interpreter) Extractor() *Extractor { return i.extractor }

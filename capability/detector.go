package capability

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

// Rule maps a source-text pattern to a capability with a confidence score.
// Rules are data: the scan engine below never special-cases individual
// capabilities, so a catalog file can ship its own rule table.
type Rule struct {
	Pattern    *regexp.Regexp
	Capability ID
	Confidence float64
	Reason     string
}

// Location is a 1-based source position of a rule match.
type Location struct {
	Line   int
	Column int
}

// Detail records why a capability was detected.
type Detail struct {
	Capability ID
	Reason     string
	Locations  []Location
}

// DetectionResult is the immutable output of one detector run. Required
// holds the dependency-closed, non-privileged capabilities the code needs;
// Unavailable holds detected capabilities that are privileged and therefore
// withheld until an operator grants them explicitly.
type DetectionResult struct {
	Required     []Capability
	Unavailable  []Capability
	Confidence   float64
	Details      []Detail
	AnalysisTime time.Duration
}

// Detector scans guest source text against a rule table and resolves the
// detected capabilities' dependency closure over a catalog. Detection is a
// pure function of the source text; a Detector is safe for concurrent use.
type Detector struct {
	catalog *Catalog
	rules   []Rule
}

// NewDetector creates a detector over the given catalog and rule table.
// Rules referring to ids outside the catalog are kept but can never
// contribute to Required (the closure drops unknown ids).
func NewDetector(catalog *Catalog, rules []Rule) *Detector {
	return &Detector{catalog: catalog, rules: rules}
}

// Detect scans the source text and returns the detection result.
// Capabilities flagged privileged are never placed in Required, no matter
// how confident the match: detecting privileged-looking usage must not
// grant it.
func (d *Detector) Detect(source string) DetectionResult {
	start := time.Now()

	maxConf := make(map[ID]float64)
	details := make(map[ID]*Detail)
	lines := strings.Split(source, "\n")

	for _, rule := range d.rules {
		for lineNo, line := range lines {
			for _, m := range rule.Pattern.FindAllStringIndex(line, -1) {
				if maxConf[rule.Capability] < rule.Confidence {
					maxConf[rule.Capability] = rule.Confidence
				}
				det := details[rule.Capability]
				if det == nil {
					reason := rule.Reason
					if reason == "" {
						reason = "matched pattern " + rule.Pattern.String()
					}
					det = &Detail{Capability: rule.Capability, Reason: reason}
					details[rule.Capability] = det
				}
				det.Locations = append(det.Locations, Location{
					Line:   lineNo + 1,
					Column: m[0] + 1,
				})
			}
		}
	}

	// Close directly-detected capabilities under their dependencies, then
	// split out privileged entries (fail closed).
	seeds := make([]ID, 0, len(maxConf))
	for id := range maxConf {
		seeds = append(seeds, id)
	}
	var required, unavailable []Capability
	for _, id := range d.catalog.Closure(seeds...) {
		cap, ok := d.catalog.Get(id)
		if !ok {
			continue
		}
		if cap.Privileged {
			unavailable = append(unavailable, cap)
		} else {
			required = append(required, cap)
		}
	}

	// Plain code that matched nothing needs nothing extra.
	confidence := 1.0
	if len(maxConf) > 0 {
		sum := 0.0
		for _, conf := range maxConf {
			sum += conf
		}
		confidence = sum / float64(len(maxConf))
	}

	detailList := make([]Detail, 0, len(details))
	for _, det := range details {
		detailList = append(detailList, *det)
	}
	sort.Slice(detailList, func(i, j int) bool {
		return detailList[i].Capability < detailList[j].Capability
	})

	return DetectionResult{
		Required:     required,
		Unavailable:  unavailable,
		Confidence:   confidence,
		Details:      detailList,
		AnalysisTime: time.Since(start),
	}
}

// DefaultRules returns the built-in rule table for the BuiltinCatalog.
// Patterns cover the guest languages the platform compiles today; a miss
// only lowers detection confidence, it never fails the deploy.
func DefaultRules() []Rule {
	return []Rule{
		{regexp.MustCompile(`\.(Where|Select|OrderBy|GroupBy|First|Any)\s*\(`), CapLinq, 0.9, "query operator chain"},
		{regexp.MustCompile(`\b(List|Dictionary|HashSet|Queue|Stack)\s*<`), CapCollections, 0.85, "generic collection type"},
		{regexp.MustCompile(`\bnew\s+HttpClient\s*\(|\bhttp\.(Get|Post|NewRequest)\b|\bfetch\s*\(`), CapHTTP, 0.95, "HTTP client construction"},
		{regexp.MustCompile(`\bFile\.(Read|Write|Open|Exists|Delete)|\bos\.(Open|ReadFile|WriteFile)\b|\bFileStream\b`), CapFileIO, 0.9, "file system access"},
		{regexp.MustCompile(`\bJsonSerializer\.|\bjson\.(Marshal|Unmarshal)\b|\bJSON\.(parse|stringify)\b`), CapJSON, 0.85, "JSON serialization"},
		{regexp.MustCompile(`\bTask\.(Run|WhenAll|WhenAny|Delay)|\basync\s|\bawait\s`), CapAsync, 0.8, "asynchronous execution"},
		{regexp.MustCompile(`\b(Sql|Db)(Connection|Command)\b|\bsql\.Open\s*\(|\bSELECT\s+.+\s+FROM\s`), CapDatabase, 0.9, "database access"},
		{regexp.MustCompile(`\btypeof\s*\(|\.GetType\s*\(|\breflect\.(TypeOf|ValueOf)\b`), CapReflection, 0.85, "runtime reflection"},
		{regexp.MustCompile(`\bDllImport\b|\bMarshal\.|\bextern\s+"C"`), CapInterop, 0.9, "native interop"},
		{regexp.MustCompile(`\b(SHA256|SHA512|Aes|HMACSHA)\b|\bcrypto/(sha256|aes|hmac)\b`), CapCrypto, 0.85, "cryptographic primitive"},
		{regexp.MustCompile(`\b(ILogger|log\.(Print|Info|Error)|console\.(log|error))\b`), CapLogging, 0.7, "logging call"},
	}
}

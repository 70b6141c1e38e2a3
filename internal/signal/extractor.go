package signal

import (
	"context"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iMOD07/AlpacaTradingBot/internal/logger"
)

const numPattern = `([0-9]+(?:\.[0-9]+)?)`

// matcher is one tagged phrasing for an entry or stop line. The order of the
// tables below is a precedence policy: when several phrasings co-occur in one
// message, the earliest table entry wins.
type matcher struct {
	name string
	re   *regexp.Regexp
}

var entryMatchers = []matcher{
	{"exceeds-ar", regexp.MustCompile(`(?:بتجاوز|تجاوز)\s+` + numPattern)},
	{"breakout-ar", regexp.MustCompile(`اختراق\s+` + numPattern)},
	{"entry-ar", regexp.MustCompile(`(?:دخول|شراء)\s+` + numPattern)},
	{"exceeds-en", regexp.MustCompile(`(?i)exceeds?\s+` + numPattern)},
	{"breakout-en", regexp.MustCompile(`(?i)break\s*out\s+(?:at\s+)?` + numPattern)},
	{"entry-en", regexp.MustCompile(`(?i)(?:entry|buy)\s+(?:at\s+)?` + numPattern)},
}

var stopMatchers = []matcher{
	{"stop-ar", regexp.MustCompile(`(?:وقف|ستوب)\s+` + numPattern)},
	{"stop-en", regexp.MustCompile(`(?i)(?:stop[\s-]*loss|stop|sl)[:\s]+` + numPattern)},
}

var (
	symbolTokenRe   = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9.\-]{1,10}$`)
	targetsHeaderRe = regexp.MustCompile(`(?i)(?:اهداف|أهداف|الأهداف|الاهداف|targets?)`)
	numberRe        = regexp.MustCompile(numPattern)
)

// symbolStopwords are phrase keywords that can never be a ticker. Without
// this an English-phrased message whose entry line precedes the symbol line
// would parse the verb as the symbol.
var symbolStopwords = map[string]struct{}{
	"BUY": {}, "SELL": {}, "ENTRY": {}, "EXIT": {},
	"STOP": {}, "SL": {}, "TP": {}, "AT": {}, "LOSS": {},
	"TARGET": {}, "TARGETS": {}, "BREAKOUT": {}, "EXCEEDS": {},
}

// Extractor is the heuristic regex-based signal parser. It is pure: the same
// input always yields the same output.
type Extractor struct{}

func NewExtractor() *Extractor { return &Extractor{} }

// Parse scans text for a symbol line, an entry trigger, a stop price and an
// optional targets block. Returns ErrNoSignal when any required piece is
// missing or malformed.
func (e *Extractor) Parse(_ context.Context, text string) (*TradeSignal, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoSignal
	}
	normalized := normalizeText(text)

	symbol := findSymbol(normalized)
	if symbol == "" {
		return nil, ErrNoSignal
	}

	trigger, name, ok := firstMatch(entryMatchers, normalized)
	if !ok {
		return nil, ErrNoSignal
	}
	stop, _, ok := firstMatch(stopMatchers, normalized)
	if !ok {
		return nil, ErrNoSignal
	}
	logger.Debugf("signal: matched entry via %s for %s", name, symbol)

	return &TradeSignal{
		Symbol:  symbol,
		Trigger: trigger,
		Stop:    stop,
		Targets: findTargets(normalized),
	}, nil
}

// findSymbol returns the first line that consists of a single bare Latin
// ticker token (2-11 chars), scanning top-down. The line-alone requirement
// mirrors the message shape: the ticker always stands on its own line, so
// tokens embedded in entry or stop phrases never qualify. Trailing
// separators left over from normalization are trimmed off the token.
func findSymbol(text string) string {
	for _, line := range strings.Split(text, "\n") {
		fields := strings.Fields(line)
		if len(fields) != 1 {
			continue
		}
		tok := strings.TrimRight(fields[0], ".-")
		if !symbolTokenRe.MatchString(tok) {
			continue
		}
		sym := strings.ToUpper(tok)
		if _, keyword := symbolStopwords[sym]; keyword {
			continue
		}
		return sym
	}
	return ""
}

func firstMatch(table []matcher, text string) (decimal.Decimal, string, bool) {
	for _, m := range table {
		groups := m.re.FindStringSubmatch(text)
		if groups == nil {
			continue
		}
		val, err := decimal.NewFromString(groups[1])
		if err != nil {
			// A malformed trigger/stop token fails the whole parse.
			return decimal.Zero, m.name, false
		}
		return val, m.name, true
	}
	return decimal.Zero, "", false
}

// findTargets collects every number token after the targets header. No
// header means no targets, which is not a failure. Individual tokens that do
// not parse are skipped.
func findTargets(text string) []decimal.Decimal {
	loc := targetsHeaderRe.FindStringIndex(text)
	if loc == nil {
		return nil
	}
	var targets []decimal.Decimal
	for _, tok := range numberRe.FindAllString(text[loc[1]:], -1) {
		val, err := decimal.NewFromString(tok)
		if err != nil {
			continue
		}
		targets = append(targets, val)
	}
	return targets
}

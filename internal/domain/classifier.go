package domain

import (
	"regexp"
	"strings"
)

// categoryPatternSet pairs a category with its ordered pattern list. Order
// matters: when two categories tie on match count, the earlier one in this
// slice wins — verbatim from market_classifier.py::CATEGORY_PATTERNS, whose
// dict iteration order is CRYPTO, SPORTS, POLITICS, ECONOMICS,
// ENTERTAINMENT, SCIENCE, NEWS.
type categoryPatternSet struct {
	category MarketCategory
	patterns []string
}

var categoryPatternDefs = []categoryPatternSet{
	{CategoryCrypto, []string{
		`\bbtc\b`, `\bbitcoin\b`, `\beth\b`, `\bethereum\b`,
		`\bsol\b`, `\bsolana\b`, `\bxrp\b`, `\bdoge\b`, `\bshib\b`,
		`\bcrypto\b`, `\btoken\b`, `\bdefi\b`, `\bnft\b`,
		`\bprice\b.*\b(above|below|hit|reach)\b`,
		`\b(above|below|hit|reach)\b.*\bprice\b`,
		`\$\d+k\b`,
		`\bhalving\b`, `\betf\b.*\bcrypto\b`, `\bcrypto\b.*\betf\b`,
	}},
	{CategorySports, []string{
		`\bnba\b`, `\bnfl\b`, `\bmlb\b`, `\bnhl\b`, `\bmls\b`,
		`\bpremier\s*league\b`, `\bla\s*liga\b`, `\bserie\s*a\b`,
		`\bbundesliga\b`, `\bchampions\s*league\b`, `\buefa\b`,
		`\bsuper\s*bowl\b`, `\bworld\s*series\b`, `\bworld\s*cup\b`,
		`\bolympics\b`, `\bmarch\s*madness\b`, `\bplayoffs\b`,
		`\bfinals\b.*\b(win|champion)\b`,
		`\blakers\b`, `\bceltics\b`, `\bwarriors\b`, `\bchiefs\b`,
		`\beagles\b`, `\bcowboys\b`, `\byankees\b`, `\bdodgers\b`,
		`\btennis\b`, `\bgolf\b`, `\bboxing\b`, `\bufc\b`, `\bmma\b`,
		`\bf1\b`, `\bformula\s*1\b`, `\bnascar\b`,
		`\blebron\b`, `\bcurry\b`, `\bmahomes\b`, `\bbrady\b`,
	}},
	{CategoryPolitics, []string{
		`\belection\b`, `\bvote\b`, `\bballot\b`, `\bprimary\b`,
		`\bpresident\b`, `\bgovernor\b`, `\bsenator\b`, `\bcongress\b`,
		`\brepublican\b`, `\bdemocrat\b`, `\bgop\b`,
		`\btrump\b`, `\bbiden\b`, `\bharris\b`, `\bobama\b`,
		`\bdesantis\b`, `\bnewsom\b`, `\bpelosi\b`, `\bmcconnell\b`,
		`\bwar\b`, `\binvasion\b`, `\bsanction\b`, `\btreaty\b`,
		`\bnato\b`, `\bun\b.*\bresolution\b`,
		`\brussia\b`, `\bukraine\b`, `\bchina\b`, `\btaiwan\b`,
		`\bisrael\b`, `\bpalestine\b`, `\biran\b`,
		`\bimpeach\b`, `\blegislat\b`, `\bbill\b.*\bpass\b`,
		`\bsupreme\s*court\b`, `\bscotus\b`,
	}},
	{CategoryEconomics, []string{
		`\bfed\b`, `\bfederal\s*reserve\b`, `\binterest\s*rate\b`,
		`\binflation\b`, `\bcpi\b`, `\bfomc\b`,
		`\brate\s*(cut|hike)\b`, `\b(cut|hike)\s*rate\b`,
		`\bgdp\b`, `\bunemployment\b`, `\bjobs\s*report\b`,
		`\brecession\b`, `\bstock\s*market\b`, `\bs&p\b`, `\bnasdaq\b`,
		`\bdow\b`, `\btreasury\b`, `\byield\b`,
	}},
	{CategoryEntertainment, []string{
		`\boscars?\b`, `\bacademy\s*award\b`, `\bemmy\b`, `\bgrammy\b`,
		`\bgolden\s*globe\b`, `\bsag\s*award\b`,
		`\bnetflix\b`, `\bdisney\b`, `\bhbo\b`, `\bstreaming\b`,
		`\bbox\s*office\b`, `\bmovie\b.*\b(gross|earn)\b`,
		`\btaylor\s*swift\b`, `\bbeyonc[eé]\b`, `\bkanye\b`,
		`\bkardashan\b`, `\belon\s*musk\b`,
	}},
	{CategoryScience, []string{
		`\bspacex\b`, `\bnasa\b`, `\brocket\b`, `\blaunch\b`,
		`\bmars\b`, `\bmoon\b`, `\bastronaut\b`, `\bstarship\b`,
		`\bai\b.*\b(breakthrough|achieve)\b`, `\bquantum\b`,
		`\bclimate\b`, `\bglobal\s*warming\b`,
		`\bvaccine\b`, `\bcovid\b`, `\bpandemic\b`,
	}},
	{CategoryNews, []string{
		`\bbreaking\b`, `\bjust\s*in\b`,
		`\bwill\b.*\bhappen\b.*\btoday\b`,
		`\bthis\s*week\b`, `\bby\s*end\s*of\b`,
		`\btweet\b`, `\bannounce\b`, `\bresign\b`, `\bfire[ds]?\b`,
		`\barrest\b`, `\bindict\b`, `\bcharge[ds]?\b`,
		`\bby\s*(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`,
		`\bby\s*(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)\b`,
	}},
}

type compiledCategoryPattern struct {
	source string
	regex  *regexp.Regexp
}

type compiledCategoryPatterns struct {
	category MarketCategory
	patterns []compiledCategoryPattern
}

var compiledCategoryPatternSets = compileCategoryPatterns()

func compileCategoryPatterns() []compiledCategoryPatterns {
	out := make([]compiledCategoryPatterns, len(categoryPatternDefs))
	for i, def := range categoryPatternDefs {
		patterns := make([]compiledCategoryPattern, len(def.patterns))
		for j, p := range def.patterns {
			patterns[j] = compiledCategoryPattern{source: p, regex: regexp.MustCompile("(?i)" + p)}
		}
		out[i] = compiledCategoryPatterns{category: def.category, patterns: patterns}
	}
	return out
}

// ClassifyMarket classifies a market by slug and optional description into a
// category, counting regex matches per category and picking the category
// with the most matches (ties go to the earlier category in
// categoryPatternDefs order). Verbatim from
// market_classifier.py::MarketClassifier.classify_with_confidence.
func ClassifyMarket(marketSlug, description string) MarketClassification {
	text := strings.ToLower(strings.ReplaceAll(marketSlug, "-", " ") + " " + description)

	bestCategory := CategoryOther
	var bestMatches []string
	bestScore := 0

	for _, set := range compiledCategoryPatternSets {
		var matches []string
		for _, p := range set.patterns {
			if p.regex.MatchString(text) {
				matches = append(matches, p.source)
			}
		}
		if len(matches) > bestScore {
			bestScore = len(matches)
			bestCategory = set.category
			bestMatches = matches
		}
	}

	confidence := minF(1.0, float64(bestScore)*0.25)

	return MarketClassification{
		MarketSlug:      marketSlug,
		Category:        bestCategory,
		Confidence:      confidence,
		MatchedPatterns: bestMatches,
	}
}

// FilterByCategory keeps wallets whose combined volume fraction across
// requiredCategories meets minConcentration, per
// market_classifier.py::TraderCategoryProfiler.filter_by_category.
func FilterByCategory(categoryVolume map[string]map[MarketCategory]float64, requiredCategories []MarketCategory, minConcentration float64) []string {
	var filtered []string
	for walletID, profile := range categoryVolume {
		var total float64
		for _, cat := range requiredCategories {
			total += profile[cat]
		}
		if total >= minConcentration {
			filtered = append(filtered, walletID)
		}
	}
	return filtered
}

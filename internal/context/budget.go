package context

// DefaultMaxContextSize is the hard ceiling on assembled context length.
const DefaultMaxContextSize = 100000

// DefaultMaxFiles is how many ranked files the builder asks the scorer for.
const DefaultMaxFiles = 50

// DefaultBaseSize applies to intents missing from a base-size table.
const DefaultBaseSize = 50000

// DefaultBaseSizes returns the per-intent soft budget table, in characters.
// Debugging and refactoring need the widest view of the code; explanations
// and configuration questions need the least.
func DefaultBaseSizes() map[Intent]int {
	return map[Intent]int{
		IntentDebug:    80000,
		IntentFeature:  60000,
		IntentExplain:  40000,
		IntentRefactor: 70000,
		IntentTest:     50000,
		IntentConfig:   30000,
		IntentGeneral:  50000,
	}
}

// BaseSize returns the soft budget for an intent from the given table,
// falling back to DefaultBaseSize.
func BaseSize(sizes map[Intent]int, intent Intent) int {
	if size, ok := sizes[intent]; ok && size > 0 {
		return size
	}
	return DefaultBaseSize
}

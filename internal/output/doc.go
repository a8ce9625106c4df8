// Package output provides structured output for buddy commands.
//
// # Output Types
//
//   - AnalysisOutput: Query analysis (buddy analyze)
//   - RankOutput: Ranked project files (buddy rank)
//   - ContextOutput: Assembled context (buddy context)
//   - SessionListOutput: Stored sessions (buddy sessions)
//
// # Format Types
//
//   - Text (context default): the assembled context or a plain listing,
//     ready to paste into a prompt
//   - YAML: Self-documenting, human-readable
//   - JSON: Machine-readable, same structure as YAML
//
// # Density Modes
//
// Density controls how much detail structured output carries:
//
//   - Sparse: paths and scores only
//     Example: src/auth.py: 15.0
//
//   - Medium (default): adds match reasons and tech terms
//
//   - Dense: adds file sizes, modification times and per-intent pattern counts
//
//   - Smart: per-file density by score. Strong matches get dense detail,
//     weak ones sparse
//
// # Example Usage
//
//	out := output.NewRankOutput(query, analysis, ranked)
//	formatter, _ := output.GetFormatter(output.FormatYAML)
//	formatter.FormatToWriter(os.Stdout, out, output.DensityMedium)
package output

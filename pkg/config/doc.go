/*
Package config manages configuration parsing and validation for srtgloss.

	            +-------------+
	            |   Config    |
	            | (Settings)  |
	            +------+------+
	                   |
	    +-----------+-----------+-----------+
	    |           |                       |
	+---+----+  +---+----+            +----+----+
	|  YAML  |  |  JSON  |            |   HCL   |
	| Parser |  | Parser |            | Parser  |
	+--------+  +--------+            +---------+

🎯 Purpose:
- Manages configuration loading and parsing
- Validates configuration values and fills defaults
- Provides the immutable run configuration to the batch runner
- Supports multiple config formats

🔄 Flow:
1. Reads configuration from file (missing file means defaults)
2. Parses format-specific syntax
3. Validates configuration values
4. Hands the snapshot to the runner; nothing is re-read mid-run

📝 Design Philosophy:
The config package is the source of truth for all configuration. It:
- Provides a clean interface for config access
- Ensures type safety and validation
- Abstracts away format-specific details
- Makes configuration errors clear and actionable
*/
package config

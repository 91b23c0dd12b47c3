// Warden is the endpoint data-loss-prevention agent.
//
// It indexes local drives on demand, turns administrator protection intents
// into minifilter rules and serves a local administration API.
//
// Usage:
//
//	# Start the agent with default configuration
//	warden run
//
//	# Start with a custom configuration file
//	warden run --config C:\ProgramData\Warden\config.yaml
//
//	# Check an intent before applying it
//	warden safety --intent block-report.yaml
//	warden preview --intent block-report.yaml
//	warden dry-run --intent block-report.yaml --output json
//
//	# Show recent journaled events
//	warden events --limit 50
//
//	# Show version information
//	warden version
package main

func main() {
	Execute()
}

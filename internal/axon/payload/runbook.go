package payload

const runbook = "# Memory Monitor Runbook\n" +
	"\n" +
	"This Axon monitors the system memory usage and reports it to Synapse.\n" +
	"\n" +
	"## Troubleshooting\n" +
	"If you receive a **Critical** alert (>90% usage):\n" +
	"1. Check for memory-hungry processes: `top -o %MEM`\n" +
	"2. Identify if it's a leak or expected load.\n" +
	"3. Use the **Drop Cache** action below if the system is sluggish.\n" +
	"\n" +
	"## Data Sources\n" +
	"- **gopsutil**: Used for cross-platform memory statistics.\n" +
	"- **Log Stream**: Captures every sample event for audit.\n"

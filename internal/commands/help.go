package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHelpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "help",
		Short: "Show comprehensive help for evshift",
		Long:  `Display detailed help for all evshift commands and flags.`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprint(cmd.OutOrStdout(), customHelp)
		},
	}
}

const customHelp = `
███████╗██╗   ██╗███████╗██╗  ██╗██╗███████╗████████╗
██╔════╝██║   ██║██╔════╝██║  ██║██║██╔════╝╚══██╔══╝
█████╗  ██║   ██║███████╗███████║██║█████╗     ██║
██╔══╝  ╚██╗ ██╔╝╚════██║██╔══██║██║██╔══╝     ██║
███████╗ ╚████╔╝ ███████║██║  ██║██║██║        ██║
╚══════╝  ╚═══╝  ╚══════╝╚═╝  ╚═╝╚═╝╚═╝        ╚═╝

evshift - EV maintenance shift lifecycle reconciler

LIFECYCLE:

  PENDING_ASSIGNMENT ──start──▶ LATE_ASSIGNMENT
         │                            │
         └──────── assign ────────────┴──▶ SCHEDULED ──start──▶ IN_PROGRESS ──end──▶ COMPLETED

  Any shift that has not finished can be cancelled.

COMMANDS:

  serve                   Run the reconciler loop and the admin API
    --interval            Delay between passes (default from config, 60s)
    --http                Admin API address (default 127.0.0.1:8088)
    --no-http             Reconciler only

  reconcile               Run one pass now and print what changed
    --json                JSON report

  shift add               Create a shift
    --start               Start time (required)
    --end                 End time (required with --assignee)
    --assignee            Assign at creation
    --staff               Staff reference
    --tech                Technician codes, e.g. ev-1,ev-2
    --appointment         Customer appointment id (type becomes booking)
    --type                booking|standalone
    --note                Notes

  shift assign <id>       Assign a pending, late or scheduled shift
    --assignee            Assignee id (required)
    --end                 End time, if the shift has none yet
    --tech, --staff       Replace technicians / staff

  shift cancel <id>       Cancel a shift that has not finished
    --note                Reason

  shift end <id> <time>   Set or move the end time
  shift rm <id>           Delete a shift
  shift show <id>         Show one shift (--json)

  ls                      List shifts
    --status              pending,late,scheduled,in_progress,completed,cancelled
    --from, --to          Start window
    --limit               Maximum rows
    --json                JSON output

  board                   Live board of shifts, refreshed every 5s
    --refresh             Reload interval

  version                 Print version information
  help                    Show this help

TIMES:

  dd/mm/yyyy HH:MM, dd/mm/yyyy, HH:MM, now, in N minutes|hours|days, RFC 3339

CONFIG:

  ~/.evshift/config.yaml, created on first use. Override with --config or
  EVSHIFT_DB_DRIVER, EVSHIFT_DB_PATH, EVSHIFT_MONGO_URI, EVSHIFT_MONGO_DATABASE,
  EVSHIFT_INTERVAL, EVSHIFT_WORKERS, EVSHIFT_HTTP_ADDR, EVSHIFT_LOG_LEVEL.

`

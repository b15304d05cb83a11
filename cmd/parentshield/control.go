package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ulrichando/ParentShield/internal/domain"
	"github.com/ulrichando/ParentShield/internal/infra"
	"github.com/ulrichando/ParentShield/internal/ipc"
)

var (
	green  = color.New(color.FgGreen, color.Bold).SprintFunc()
	red    = color.New(color.FgRed, color.Bold).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon and blocking status",
	RunE:  runStatus,
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the daemon answers",
	RunE:  runPing,
}

var setCmd = &cobra.Command{
	Use:   "set",
	Short: "Turn blocking features on or off",
	Long: `Updates the blocking toggles. Only the flags given are changed.
Requires the control password.

  parentshield set --game --ai=false`,
	RunE: runSet,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Terminate blocked processes now",
	RunE:  runCheck,
}

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Re-apply hosts-file and firewall blocking now",
	RunE:  runApply,
}

var firewallCmd = &cobra.Command{
	Use:       "firewall enable|disable",
	Short:     "Force DNS-over-HTTPS blocking on or off",
	Long:      `Forces DoH resolver blocking on or off until the next enforcement pass. Disabling requires the control password.`,
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"enable", "disable"},
	RunE:      runFirewall,
}

var shutdownCmd = &cobra.Command{
	Use:   "shutdown",
	Short: "Stop the daemon (requires the control password)",
	RunE:  runShutdown,
}

var activityCmd = &cobra.Command{
	Use:   "activity",
	Short: "Show recently terminated processes",
	RunE:  runActivity,
}

var (
	setGame, setAI, setDNS, setBrowser bool
	activityLimit                      int
)

func init() {
	setCmd.Flags().BoolVar(&setGame, "game", false, "Game blocking")
	setCmd.Flags().BoolVar(&setAI, "ai", false, "AI tool blocking")
	setCmd.Flags().BoolVar(&setDNS, "dns", false, "DNS blocking (custom domains and DoH)")
	setCmd.Flags().BoolVar(&setBrowser, "browser", false, "Browser blocking")
	activityCmd.Flags().IntVar(&activityLimit, "limit", infra.DefaultActivityLimit, "Number of events to show")

	rootCmd.AddCommand(statusCmd, pingCmd, setCmd, checkCmd, applyCmd, firewallCmd, shutdownCmd, activityCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	fmt.Println("\n=== ParentShield Status ===")
	st, err := client.Status(cmd.Context())
	if errors.Is(err, domain.ErrDaemonUnavailable) {
		fmt.Printf("Daemon: %s\n", red("NOT RUNNING"))
		fmt.Printf("Service: %s\n", infra.NewServiceManager(cliLogger()).Status())
		fmt.Println("\nRun 'parentshield service install' to enable protection.")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("Daemon: %s (up %s)\n", green("RUNNING"), time.Duration(st.UptimeSecs)*time.Second)
	if st.BlockingActive {
		fmt.Printf("Schedule: %s\n", green("blocking"))
	} else {
		fmt.Printf("Schedule: %s\n", yellow("outside blocking hours"))
	}
	fmt.Println()
	fmt.Printf("Game blocking:    %s\n", onOff(st.GameBlocking))
	fmt.Printf("AI blocking:      %s\n", onOff(st.AIBlocking))
	fmt.Printf("DNS blocking:     %s\n", onOff(st.DNSBlocking))
	fmt.Printf("Browser blocking: %s\n", onOff(st.BrowserBlocking))
	fmt.Printf("DoH firewall:     %s\n", onOff(st.FirewallActive))
	fmt.Printf("\nProcesses blocked since start: %d\n", st.BlockedCount)
	fmt.Println("===========================")
	return nil
}

func onOff(on bool) string {
	if on {
		return green("on")
	}
	return red("off")
}

func runPing(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	start := time.Now()
	if err := client.Ping(cmd.Context()); err != nil {
		return err
	}
	fmt.Printf("pong from %s in %s\n", client.SocketPath(), time.Since(start).Round(time.Microsecond))
	return nil
}

// updateFromFlags builds a ConfigUpdate from the flags the user set.
func updateFromFlags(cmd *cobra.Command) ipc.ConfigUpdate {
	var u ipc.ConfigUpdate
	pick := func(name string, v bool) *bool {
		if !cmd.Flags().Changed(name) {
			return nil
		}
		return &v
	}
	u.GameBlocking = pick("game", setGame)
	u.AIBlocking = pick("ai", setAI)
	u.DNSBlocking = pick("dns", setDNS)
	u.BrowserBlocking = pick("browser", setBrowser)
	return u
}

func runSet(cmd *cobra.Command, args []string) error {
	u := updateFromFlags(cmd)
	if u.Empty() {
		return errors.New("nothing to change: pass at least one of --game, --ai, --dns, --browser")
	}
	if err := requirePassword(); err != nil {
		return err
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	if err := client.UpdateConfig(cmd.Context(), u); err != nil {
		return err
	}
	fmt.Println("Settings updated and applied.")
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	procs, err := client.RunBlockingCheck(cmd.Context())
	if err != nil {
		return err
	}

	if len(procs) == 0 {
		fmt.Println("No blocked processes running.")
		return nil
	}
	fmt.Printf("Terminated %d processes:\n", len(procs))
	for _, p := range procs {
		fmt.Printf("  - %s (pid %d)\n", p.Name, p.PID)
	}
	return nil
}

func runApply(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	if err := client.ApplyBlocking(cmd.Context()); err != nil {
		return err
	}
	fmt.Println("Blocking applied.")
	return nil
}

func runFirewall(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	if args[0] == "enable" {
		if err := client.EnableFirewall(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("DoH firewall enabled.")
		return nil
	}

	if err := requirePassword(); err != nil {
		return err
	}
	if err := client.DisableFirewall(cmd.Context()); err != nil {
		return err
	}
	fmt.Println("DoH firewall disabled until the next enforcement pass.")
	return nil
}

func runShutdown(cmd *cobra.Command, args []string) error {
	if err := requirePassword(); err != nil {
		return err
	}
	client, err := newClient()
	if err != nil {
		return err
	}
	if err := client.Shutdown(cmd.Context()); err != nil {
		return err
	}
	fmt.Println("Daemon is shutting down.")
	return nil
}

func runActivity(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	events, err := client.Activity(cmd.Context(), activityLimit)
	if err != nil {
		return err
	}

	if len(events) == 0 {
		fmt.Println("No activity recorded.")
		return nil
	}
	for _, e := range events {
		fmt.Printf("%s  %-20s %s (pid %d)\n",
			e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.Kind, e.Target, e.PID)
	}
	return nil
}

// shutdownDaemon stops a running daemon over the socket. An absent daemon
// is not an error.
func shutdownDaemon(ctx context.Context) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	err = client.Shutdown(ctx)
	if errors.Is(err, domain.ErrDaemonUnavailable) {
		return nil
	}
	return err
}

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ulrichando/ParentShield/internal/domain"
	"github.com/ulrichando/ParentShield/internal/infra"
	"github.com/ulrichando/ParentShield/internal/policy"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the encrypted config and set the control password",
	RunE:  runInit,
}

var passwdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Change the control password",
	RunE:  runPasswd,
}

var masterCmd = &cobra.Command{
	Use:   "master",
	Short: "Show the recovery (master) password",
	Long: `Shows the recovery password for this installation. It is derived from
the machine and the install time, so it never changes. Write it down: it is
the only way to reset a forgotten control password.`,
	RunE: runMaster,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the control password with the master password",
	RunE:  runReset,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the built-in block lists",
	Long:  `Shows every built-in block list with its process names and domains, and whether the current config enables it.`,
	RunE:  runList,
}

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Install and control the daemon as a system service",
}

var (
	serviceInstallCmd = &cobra.Command{Use: "install", Short: "Install and start the service", RunE: runServiceInstall}
	serviceRemoveCmd  = &cobra.Command{Use: "uninstall", Short: "Stop and remove the service (requires the control password)", RunE: runServiceUninstall}
	serviceStartCmd   = &cobra.Command{Use: "start", Short: "Start the service", RunE: runServiceStart}
	serviceStopCmd    = &cobra.Command{Use: "stop", Short: "Stop the service (requires the control password)", RunE: runServiceStop}
	serviceStatusCmd  = &cobra.Command{Use: "status", Short: "Show the service state", RunE: runServiceStatus}
)

func init() {
	serviceCmd.AddCommand(serviceInstallCmd, serviceRemoveCmd, serviceStartCmd, serviceStopCmd, serviceStatusCmd)
	rootCmd.AddCommand(initCmd, passwdCmd, masterCmd, resetCmd, listCmd, serviceCmd)
}

// stdin is shared so consecutive prompts read consecutive lines when input
// is piped.
var stdin = bufio.NewReader(os.Stdin)

func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		return string(b), err
	}
	return readLine(stdin)
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// readNewPassword prompts twice and checks both entries match.
func readNewPassword(prompt string) (string, error) {
	first, err := readPassword(prompt)
	if err != nil {
		return "", err
	}
	if first == "" {
		return "", fmt.Errorf("%w: password must not be empty", domain.ErrInvalidPassword)
	}
	second, err := readPassword("Confirm password: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errors.New("passwords do not match")
	}
	return first, nil
}

func localStore() (*infra.ConfigStoreImpl, error) {
	s, err := loadSettings()
	if err != nil {
		return nil, err
	}
	store, _ := openConfigStore(s, cliLogger())
	return store, nil
}

// requirePassword prompts for the control password and verifies it against
// the local store.
func requirePassword() error {
	store, err := localStore()
	if err != nil {
		return err
	}
	if !store.Exists() {
		return domain.ErrNotInitialized
	}
	password, err := readPassword("Control password: ")
	if err != nil {
		return err
	}
	if !store.VerifyPassword(password) {
		return domain.ErrInvalidPassword
	}
	return nil
}

func runInit(cmd *cobra.Command, args []string) error {
	store, err := localStore()
	if err != nil {
		return err
	}
	if store.Exists() {
		return domain.ErrAlreadyInitialized
	}

	password, err := readNewPassword("New control password: ")
	if err != nil {
		return err
	}
	if _, err := store.Initialize(password); err != nil {
		return err
	}

	fmt.Printf("Config created in %s\n", store.Dir())
	fmt.Println("Run 'parentshield master' to see the recovery password and keep it safe.")
	return nil
}

func runPasswd(cmd *cobra.Command, args []string) error {
	store, err := localStore()
	if err != nil {
		return err
	}
	old, err := readPassword("Current password: ")
	if err != nil {
		return err
	}
	next, err := readNewPassword("New password: ")
	if err != nil {
		return err
	}
	if err := store.ChangePassword(old, next); err != nil {
		return err
	}
	fmt.Println("Password changed.")
	return nil
}

func runMaster(cmd *cobra.Command, args []string) error {
	if err := requirePassword(); err != nil {
		return err
	}
	store, err := localStore()
	if err != nil {
		return err
	}
	master, err := store.MasterPassword()
	if err != nil {
		return err
	}
	fmt.Printf("Master password: %s\n", master)
	return nil
}

func runReset(cmd *cobra.Command, args []string) error {
	store, err := localStore()
	if err != nil {
		return err
	}
	master, err := readPassword("Master password: ")
	if err != nil {
		return err
	}
	next, err := readNewPassword("New control password: ")
	if err != nil {
		return err
	}
	if err := store.ResetWithMasterPassword(master, next); err != nil {
		return err
	}
	fmt.Println("Control password reset.")
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	registry := policy.NewRegistry()

	var cfg *domain.AppConfig
	if store, err := localStore(); err == nil {
		cfg, _ = store.Load()
	}

	fmt.Println("\n=== Block Lists ===")
	for _, l := range registry.GetAll() {
		state := ""
		if cfg != nil {
			state = " " + onOff(l.ProcessesEnabled(cfg) || l.DomainsEnabled(cfg))
		}
		fmt.Printf("\n[%s] %s%s\n", l.ID(), l.Name(), state)
		if procs := l.ProcessNames(); len(procs) > 0 {
			fmt.Printf("  Processes (%d):\n", len(procs))
			for _, p := range procs {
				fmt.Printf("    - %s\n", p)
			}
		}
		if domains := l.Domains(); len(domains) > 0 {
			fmt.Printf("  Domains (%d):\n", len(domains))
			for _, d := range domains {
				fmt.Printf("    - %s\n", d)
			}
		}
	}

	if cfg != nil {
		fmt.Println("\nCustom rules:")
		printSet("Blocked processes", cfg.BlockedProcesses)
		printSet("Blocked domains", cfg.BlockedDomains)
		printSet("Allowed processes", cfg.AllowedProcesses)
		printSet("Allowed domains", cfg.AllowedDomains)
	}
	fmt.Println("\n===================")
	return nil
}

func printSet(title string, set domain.StringSet) {
	if len(set) == 0 {
		return
	}
	fmt.Printf("  %s: %s\n", title, strings.Join(set.Sorted(), ", "))
}

func runServiceInstall(cmd *cobra.Command, args []string) error {
	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	fmt.Printf("Execution mode: %s\n", infra.DetectExecMode())
	if err := infra.NewServiceManager(cliLogger()).Install(execPath); err != nil {
		return err
	}
	fmt.Printf("Service installed for %s\n", execPath)
	return nil
}

func runServiceUninstall(cmd *cobra.Command, args []string) error {
	if err := requirePassword(); err != nil {
		return err
	}
	// The unit refuses a manual stop, so the daemon is asked to exit first.
	if err := shutdownDaemon(cmd.Context()); err != nil {
		fmt.Printf("Warning: daemon did not shut down: %v\n", err)
	}
	if err := infra.NewServiceManager(cliLogger()).Uninstall(); err != nil {
		return err
	}
	fmt.Println("Service removed.")
	return nil
}

func runServiceStart(cmd *cobra.Command, args []string) error {
	if err := infra.NewServiceManager(cliLogger()).Start(); err != nil {
		return err
	}
	fmt.Println("Service started.")
	return nil
}

func runServiceStop(cmd *cobra.Command, args []string) error {
	if err := requirePassword(); err != nil {
		return err
	}
	if err := shutdownDaemon(cmd.Context()); err != nil {
		return err
	}
	fmt.Println("Daemon stopped. The service manager may restart it; use 'service uninstall' to remove it.")
	return nil
}

func runServiceStatus(cmd *cobra.Command, args []string) error {
	mgr := infra.NewServiceManager(cliLogger())
	status := mgr.Status()

	switch status {
	case domain.ServiceRunning:
		fmt.Printf("Service: %s\n", green(status))
	case domain.ServiceNotInstalled:
		fmt.Printf("Service: %s\n", yellow(status))
	default:
		fmt.Printf("Service: %s\n", red(status))
	}
	return nil
}

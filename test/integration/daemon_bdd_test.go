//go:build integration

package integration

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ulrichando/ParentShield/internal/daemon"
	"github.com/ulrichando/ParentShield/internal/domain"
	"github.com/ulrichando/ParentShield/internal/infra"
	"github.com/ulrichando/ParentShield/internal/ipc"
	"github.com/ulrichando/ParentShield/internal/policy"
	"github.com/ulrichando/ParentShield/internal/usecase"
	"github.com/ulrichando/ParentShield/test/fixtures"
)

const (
	testMachineID = "integration-machine-0001"
	testPassword  = "correct horse"
)

func boolPtr(b bool) *bool { return &b }

var _ = Describe("ParentShield daemon", func() {
	var (
		tmpDir    string
		storeDir  string
		hostsPath string
		store     *infra.ConfigStoreImpl
		activity  *infra.SQLCipherActivityLog
		procs     *fixtures.FakeProcessManager
		firewall  *fixtures.FakeFirewallStrategy
		server    *daemon.Server
		client    *ipc.Client
		cancel    context.CancelFunc
		stopped   chan struct{}
		ctx       context.Context
	)

	updateStored := func(fn func(cfg *domain.AppConfig)) {
		cfg, err := store.Load()
		Expect(err).NotTo(HaveOccurred())
		fn(cfg)
		Expect(store.Save(cfg)).To(Succeed())
	}

	BeforeEach(func() {
		var err error
		// Short path: unix socket names are limited to ~104 bytes on macOS.
		tmpDir, err = os.MkdirTemp("", "psit")
		Expect(err).NotTo(HaveOccurred())

		storeDir = filepath.Join(tmpDir, "cfg")
		hostsPath = filepath.Join(tmpDir, "hosts")
		Expect(fixtures.WriteHostsFile(hostsPath)).To(Succeed())

		keys := infra.NewStaticKeyProvider(testMachineID)
		store = infra.NewConfigStore(storeDir, keys, zap.NewNop()).WithHashCost(bcrypt.MinCost)
		_, err = store.Initialize(testPassword)
		Expect(err).NotTo(HaveOccurred())

		key, err := keys.GetKey()
		Expect(err).NotTo(HaveOccurred())
		activity, err = infra.NewActivityLog(storeDir, key)
		Expect(err).NotTo(HaveOccurred())

		procs = fixtures.NewFakeProcessManager()
		firewall = &fixtures.FakeFirewallStrategy{}
		logger := zap.NewNop()

		enforcer := usecase.NewEnforcer(
			store,
			procs,
			infra.NewHostsFileWithDeps(hostsPath, &fixtures.FakeCommandRunner{}, logger),
			infra.NewFirewallManagerWithStrategies(logger, firewall),
			policy.NewRegistry(),
			logger,
		).WithActivityLog(activity)

		socketPath := filepath.Join(tmpDir, "d.sock")
		server = daemon.NewServer(daemon.Config{
			SocketPath:         socketPath,
			EnforceInterval:    100 * time.Millisecond,
			AcceptPollInterval: 10 * time.Millisecond,
			ReadTimeout:        5 * time.Second,
			WriteTimeout:       time.Second,
		}, enforcer, store, activity, logger)
		client = ipc.NewClient(socketPath).WithTimeout(5 * time.Second)

		var runCtx context.Context
		runCtx, cancel = context.WithCancel(context.Background())
		stopped = make(chan struct{})
		srv, done := server, stopped
		go func() {
			defer GinkgoRecover()
			defer close(done)
			Expect(srv.Run(runCtx)).To(Succeed())
		}()

		ctx = context.Background()
		Eventually(func() bool { return client.IsDaemonRunning(ctx) }, "3s", "20ms").Should(BeTrue())
	})

	AfterEach(func() {
		cancel()
		Eventually(stopped, "5s").Should(BeClosed())
		Expect(activity.Close()).To(Succeed())
		os.RemoveAll(tmpDir)
	})

	Describe("status", func() {
		It("reports a fresh install with every feature off", func() {
			st, err := client.Status(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(st.Running).To(BeTrue())
			Expect(st.BlockingActive).To(BeTrue())
			Expect(st.GameBlocking).To(BeFalse())
			Expect(st.AIBlocking).To(BeFalse())
			Expect(st.FirewallActive).To(BeFalse())
			Expect(st.BlockedCount).To(BeZero())
		})
	})

	Describe("UpdateConfig", func() {
		Context("when game blocking is turned on", func() {
			BeforeEach(func() {
				Expect(client.UpdateConfig(ctx, ipc.ConfigUpdate{GameBlocking: boolPtr(true)})).To(Succeed())
			})

			It("persists the toggle before answering", func() {
				cfg, err := store.Load()
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.GameBlocking).To(BeTrue())
				Expect(cfg.AIBlocking).To(BeFalse())
			})

			It("denies gaming domains in the hosts file", func() {
				content := fixtures.ReadHostsFile(hostsPath)
				Expect(content).To(HavePrefix(fixtures.BaseHosts))
				Expect(content).To(ContainSubstring("0.0.0.0 steampowered.com"))
				Expect(content).To(ContainSubstring("0.0.0.0 www.steampowered.com"))
				Expect(content).To(ContainSubstring("# BEGIN ParentShield"))
			})

			It("blocks DoH resolvers", func() {
				Expect(firewall.IsActive()).To(BeTrue())
				Expect(firewall.BlockedIPv4()).To(ContainElement("1.1.1.1"))

				st, err := client.Status(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(st.FirewallActive).To(BeTrue())
			})

			It("does not reinstall firewall rules on every tick", func() {
				applies := firewall.Applies()
				Consistently(firewall.Applies, "400ms", "50ms").Should(Equal(applies))
			})

			It("terminates a running game in the background loop", func() {
				procs.Spawn("steam")
				procs.Spawn("bash")

				Eventually(func() bool { return procs.IsRunning("steam") }, "2s", "20ms").Should(BeFalse())
				Expect(procs.IsRunning("bash")).To(BeTrue())

				Eventually(func() uint64 {
					st, err := client.Status(ctx)
					Expect(err).NotTo(HaveOccurred())
					return st.BlockedCount
				}, "2s", "20ms").Should(BeNumerically(">=", 1))
			})

			It("records terminated processes in the activity history", func() {
				procs.Spawn("steam")
				Eventually(func() []domain.ActivityEvent {
					events, err := client.Activity(ctx, 10)
					Expect(err).NotTo(HaveOccurred())
					return events
				}, "2s", "20ms").Should(ContainElement(HaveField("Target", "steam")))
			})
		})

		Context("when every feature is turned back off", func() {
			It("clears the hosts section and the firewall", func() {
				Expect(client.UpdateConfig(ctx, ipc.ConfigUpdate{
					GameBlocking: boolPtr(true),
					AIBlocking:   boolPtr(true),
				})).To(Succeed())
				Expect(firewall.IsActive()).To(BeTrue())

				Expect(client.UpdateConfig(ctx, ipc.ConfigUpdate{
					GameBlocking: boolPtr(false),
					AIBlocking:   boolPtr(false),
				})).To(Succeed())

				Expect(fixtures.ReadHostsFile(hostsPath)).To(Equal(fixtures.BaseHosts))
				Expect(firewall.IsActive()).To(BeFalse())
			})
		})
	})

	Describe("RunBlockingCheck", func() {
		It("returns the processes it terminated", func() {
			updateStored(func(cfg *domain.AppConfig) {
				cfg.BlockedProcesses.Add("fortnite.exe")
			})
			pid := procs.Spawn("fortnite.exe")

			killed, err := client.RunBlockingCheck(ctx)
			Expect(err).NotTo(HaveOccurred())
			if len(killed) == 0 {
				// The background loop got there first.
				Expect(procs.Terminated()).To(ContainElement(domain.ProcessInfo{PID: pid, Name: "fortnite.exe"}))
			} else {
				Expect(killed).To(ContainElement(ipc.BlockedProcess{PID: pid, Name: "fortnite.exe"}))
			}
			Expect(procs.IsRunning("fortnite.exe")).To(BeFalse())
		})

		It("spares allowed processes", func() {
			updateStored(func(cfg *domain.AppConfig) {
				cfg.GameBlocking = true
				cfg.AllowedProcesses.Add("minecraft")
			})
			procs.Spawn("minecraft")

			_, err := client.RunBlockingCheck(ctx)
			Expect(err).NotTo(HaveOccurred())
			Consistently(func() bool { return procs.IsRunning("minecraft") }, "300ms", "50ms").Should(BeTrue())
		})

		It("does nothing outside the blocking schedule", func() {
			tomorrow := (int(time.Now().Weekday()) + 1) % 7
			updateStored(func(cfg *domain.AppConfig) {
				cfg.GameBlocking = true
				cfg.Schedules = []domain.ScheduleEntry{
					domain.NewScheduleEntry("tomorrow", []int{tomorrow}, 0, 1440),
				}
			})
			procs.Spawn("steam")

			killed, err := client.RunBlockingCheck(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(killed).To(BeEmpty())
			Consistently(func() bool { return procs.IsRunning("steam") }, "300ms", "50ms").Should(BeTrue())

			st, err := client.Status(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(st.BlockingActive).To(BeFalse())
		})
	})

	Describe("firewall control", func() {
		It("forces DoH blocking on and off", func() {
			Expect(client.EnableFirewall(ctx)).To(Succeed())
			Expect(firewall.IsActive()).To(BeTrue())

			Expect(client.DisableFirewall(ctx)).To(Succeed())
			Expect(firewall.IsActive()).To(BeFalse())
		})
	})

	Describe("Shutdown", func() {
		It("stops the daemon and removes the socket", func() {
			Expect(client.Shutdown(ctx)).To(Succeed())
			Eventually(stopped, "2s").Should(BeClosed())

			_, err := os.Stat(client.SocketPath())
			Expect(os.IsNotExist(err)).To(BeTrue())
			Expect(client.IsDaemonRunning(ctx)).To(BeFalse())
		})
	})

	Describe("config store", func() {
		It("is unreadable with another machine's key", func() {
			other := infra.NewConfigStore(storeDir, infra.NewStaticKeyProvider("another-machine"), zap.NewNop())
			_, err := other.Load()
			Expect(err).To(MatchError(domain.ErrWrongKey))
		})

		It("reports a load failure to clients without stopping", func() {
			Expect(os.WriteFile(filepath.Join(storeDir, infra.ConfigFileName), []byte("garbage"), 0600)).To(Succeed())

			_, err := client.Status(ctx)
			var remote *ipc.RemoteError
			Expect(errors.As(err, &remote)).To(BeTrue())
			Expect(client.IsDaemonRunning(ctx)).To(BeTrue())
		})
	})
})

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	goEnroll "github.com/MrEthical07/goEnroll"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type simulateOptions struct {
	phone       string
	countryCode string
	accountType string
	wrongCodes  int
	firstName   string
	lastName    string
	email       string
	redisAddr   string
}

var simOpts simulateOptions

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run one enrollment end to end against an in-process engine",
	Long: `Walks an enrollment through every step. Codes are delivered to an
in-memory outbox and entered through the code input, optionally after a number
of wrong guesses.

When the issuance throttle is enabled the engine uses GOENROLL_REDIS_ADDR, or an
embedded miniredis when no address is given.

Example:
  goenroll simulate --phone 5551234567 --wrong-codes 2`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := resolveSettings()
		if err != nil {
			return err
		}
		if simOpts.redisAddr != "" {
			s.RedisAddr = simOpts.redisAddr
		}
		return runSimulation(cmd.Context(), cmd.OutOrStdout(), logger, s, simOpts)
	},
}

func init() {
	f := simulateCmd.Flags()
	f.StringVar(&simOpts.phone, "phone", "5551234567", "Phone number to verify")
	f.StringVar(&simOpts.countryCode, "country-code", "", "Country code; empty uses the configured default")
	f.StringVar(&simOpts.accountType, "account-type", string(goEnroll.AccountPersonal), "Account type to select")
	f.IntVar(&simOpts.wrongCodes, "wrong-codes", 0, "Wrong codes to enter before the correct one")
	f.StringVar(&simOpts.firstName, "first-name", "Ada", "First name")
	f.StringVar(&simOpts.lastName, "last-name", "Lovelace", "Last name")
	f.StringVar(&simOpts.email, "email", "ada@example.com", "Email address")
	f.StringVar(&simOpts.redisAddr, "redis-addr", "", "Redis address for the issuance throttle")
}

func runSimulation(ctx context.Context, out io.Writer, log *zap.Logger, s settings, opts simulateOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if log == nil {
		log = zap.NewNop()
	}

	outbox := goEnroll.NewMemoryOutbox(nil)
	builder := goEnroll.New().
		WithConfig(s.Config).
		WithLogger(log).
		WithDelivery(outbox).
		WithAuditSink(goEnroll.NewZapSink(log))

	if s.Config.IssueThrottle.Enabled {
		client, cleanup, err := openRedis(s.RedisAddr, out)
		if err != nil {
			return err
		}
		defer cleanup()
		builder.WithRedis(client)
	}

	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	en, err := engine.NewEnrollment(ctx)
	if err != nil {
		return err
	}
	defer en.Close()

	orch := en.Orchestrator()
	unsub := orch.OnStepChange(func(step goEnroll.Step) {
		fmt.Fprintf(out, "step: %s\n", step)
	})
	defer unsub()

	fmt.Fprintf(out, "enrollment %s\n", en.ID())

	// -------- Account type --------
	if err := orch.SelectAccountType(goEnroll.AccountType(opts.accountType)); err != nil {
		return fmt.Errorf("select account type: %w", err)
	}
	if err := orch.Next(); err != nil {
		return err
	}

	// -------- Phone verification --------
	handle, err := en.RequestCode(ctx, opts.phone, opts.countryCode)
	if err != nil {
		return fmt.Errorf("request code: %w", err)
	}
	fmt.Fprintf(out, "code sent to %s, expires in %s\n",
		handle.Phone, goEnroll.FormatCountdown(handle.ExpiresAt.Sub(engine.Clock().Now())))

	code, ok := outbox.Code(handle.SessionID)
	if !ok {
		return errors.New("no code in outbox")
	}

	session := en.Session()
	for i := 0; i < opts.wrongCodes; i++ {
		res, err := session.Check(ctx, wrongCode(code, i))
		switch {
		case errors.Is(err, goEnroll.ErrCodeInvalid):
			fmt.Fprintf(out, "attempt %d: invalid code, %d remaining\n", i+1, res.AttemptsRemaining)
		case errors.Is(err, goEnroll.ErrLocked):
			fmt.Fprintf(out, "attempt %d: locked until %s\n", i+1, res.LockedUntil.Format("15:04:05"))
			printMetrics(out, engine)
			return nil
		default:
			return fmt.Errorf("attempt %d: %w", i+1, err)
		}
	}

	input := en.NewCodeInput()
	sub := input.Paste(ctx, code)
	if !sub.Submitted {
		return errors.New("code input did not submit")
	}
	if sub.Err != nil {
		return fmt.Errorf("check code: %w", sub.Err)
	}
	fmt.Fprintf(out, "phone %s verified\n", handle.Phone)

	if s.Config.Receipt.Enabled {
		token, err := en.PhoneReceipt(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "receipt: %s\n", token)
	}

	// -------- Personal info --------
	if err := orch.SubmitPersonalInfo(goEnroll.PersonalInfo{
		FirstName: opts.firstName,
		LastName:  opts.lastName,
		Email:     opts.email,
	}); err != nil {
		return fmt.Errorf("personal info: %w", err)
	}

	data := en.Data()
	fmt.Fprintf(out, "enrolled %s %s (%s) as %s\n",
		data.PersonalInfo.FirstName, data.PersonalInfo.LastName, data.PersonalInfo.Email, data.AccountType)
	printMetrics(out, engine)
	return nil
}

// openRedis connects to addr, or starts a miniredis when addr is empty.
func openRedis(addr string, out io.Writer) (redis.UniversalClient, func(), error) {
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		fmt.Fprintf(out, "using redis at %s\n", addr)
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("start miniredis: %w", err)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	fmt.Fprintf(out, "using miniredis at %s\n", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

// wrongCode returns a code of the same length that differs from code.
func wrongCode(code string, n int) string {
	b := []byte(code)
	i := n % len(b)
	b[i] = '0' + (b[i]-'0'+1)%10
	return string(b)
}

func printMetrics(out io.Writer, engine *goEnroll.Engine) {
	snap := engine.MetricsSnapshot()
	if len(snap.Counters) == 0 {
		return
	}
	var b strings.Builder
	for _, id := range goEnroll.MetricIDs() {
		if v, ok := snap.Counters[id]; ok && v > 0 {
			fmt.Fprintf(&b, "  %s=%d\n", id, v)
		}
	}
	if b.Len() > 0 {
		fmt.Fprintf(out, "metrics:\n%s", b.String())
	}
}

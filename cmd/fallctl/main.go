package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/term"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"fall/config"
	"fall/crypto"
	"fall/gateway/middleware"
	"fall/journal"
)

const (
	defaultServer = "http://127.0.0.1:8080"
	defaultConfig = "./config.toml"
)

var printer = message.NewPrinter(language.English)

var errUsage = errors.New("usage")

type remote struct {
	usage string
	run   func(ctx context.Context, c *client, from string, args []string) error
}

var remotes = map[string]remote{
	"height":          {"height", func(ctx context.Context, c *client, _ string, _ []string) error { return get(ctx, c, "/v1/height") }},
	"pools":           {"pools", listPools},
	"pool":            {"pool <pool>", poolGet("")},
	"price":           {"price <pool>", poolGet("/price")},
	"lender":          {"lender <pool> <address>", position("lenders")},
	"borrower":        {"borrower <pool> <address>", position("borrowers")},
	"balance":         {"balance <address> <asset>", balance},
	"create-exchange": {"create-exchange <id> <liquidityFeeBps> <protocolFeeBps> [admin]", createExchange},
	"create-pool":     {"create-pool <exchange> <assetA> <assetB>", createPool},
	"deposit":         {"deposit <pool> <amountA> <amountB>", poolPost("deposit", "amountA", "amountB")},
	"withdraw":        {"withdraw <pool> <shares>", poolPost("withdraw", "shares")},
	"swap":            {"swap <pool> <assetIn> <amountIn> <minAmountOut>", swap},
	"lend":            {"lend <pool> <amount>", poolPost("lend", "amount")},
	"redeem":          {"redeem <pool>", poolPost("redeem")},
	"collateral":      {"collateral <pool> <amount>", poolPost("collateral", "amount")},
	"borrow":          {"borrow <pool> <amount>", poolPost("borrow", "amount")},
	"repay":           {"repay <pool>", poolPost("repay")},
	"liquidate":       {"liquidate <pool> <borrower>", liquidate},
	"faucet":          {"faucet <address> <asset> <amount>", faucet},
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	var err error
	switch os.Args[1] {
	case "export":
		err = runExport(os.Args[2:])
	case "token":
		err = runToken(os.Args[2:])
	case "help", "-h", "--help":
		usage()
		return
	default:
		err = runRemote(os.Args[1:])
	}
	if errors.Is(err, errUsage) {
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	names := make([]string, 0, len(remotes))
	for name := range remotes {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintln(os.Stderr, "usage: fallctl [-server URL] [-token JWT] [-from ADDRESS] <command> [args]")
	fmt.Fprintln(os.Stderr, "\ncommands:")
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %s\n", remotes[name].usage)
	}
	fmt.Fprintln(os.Stderr, "  export -config FILE -out FILE.parquet")
	fmt.Fprintln(os.Stderr, "  token -config FILE -subject ADDRESS [-scope admin] [-ttl 24h]")
}

func runRemote(args []string) error {
	fs := flag.NewFlagSet("fallctl", flag.ExitOnError)
	server := fs.String("server", envOr("FALL_SERVER", defaultServer), "gateway base URL")
	token := fs.String("token", os.Getenv("FALL_TOKEN"), "bearer token for mutating routes")
	from := fs.String("from", os.Getenv("FALL_ADDRESS"), "address to act as when auth is disabled")
	_ = fs.Parse(args)
	rest := fs.Args()
	if len(rest) == 0 {
		return errUsage
	}
	cmd, ok := remotes[rest[0]]
	if !ok {
		return fmt.Errorf("unknown command %q", rest[0])
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := cmd.run(ctx, newClient(*server, *token), *from, rest[1:]); err != nil {
		if errors.Is(err, errUsage) {
			return fmt.Errorf("usage: fallctl %s", cmd.usage)
		}
		return err
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func amount(raw string) (string, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid amount %q", raw)
	}
	return strconv.FormatUint(v, 10), nil
}

func get(ctx context.Context, c *client, path string) error {
	out := map[string]interface{}{}
	if err := c.call(ctx, http.MethodGet, path, nil, &out); err != nil {
		return err
	}
	printResult(out)
	return nil
}

func post(ctx context.Context, c *client, path string, body map[string]string) error {
	out := map[string]interface{}{}
	if err := c.call(ctx, http.MethodPost, path, body, &out); err != nil {
		return err
	}
	printResult(out)
	return nil
}

func listPools(ctx context.Context, c *client, _ string, _ []string) error {
	var pools []map[string]interface{}
	if err := c.call(ctx, http.MethodGet, "/v1/pools", nil, &pools); err != nil {
		return err
	}
	for i, pool := range pools {
		if i > 0 {
			fmt.Println()
		}
		printResult(pool)
	}
	return nil
}

func poolGet(suffix string) func(context.Context, *client, string, []string) error {
	return func(ctx context.Context, c *client, _ string, args []string) error {
		if len(args) != 1 {
			return errUsage
		}
		return get(ctx, c, "/v1/pools/"+args[0]+suffix)
	}
}

func position(kind string) func(context.Context, *client, string, []string) error {
	return func(ctx context.Context, c *client, _ string, args []string) error {
		if len(args) != 2 {
			return errUsage
		}
		return get(ctx, c, "/v1/pools/"+args[0]+"/"+kind+"/"+args[1])
	}
}

func balance(ctx context.Context, c *client, _ string, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	return get(ctx, c, "/v1/balances/"+args[0]+"/"+args[1])
}

// poolPost builds a pool mutation whose positional arguments after the pool
// are amounts named by fields.
func poolPost(route string, fields ...string) func(context.Context, *client, string, []string) error {
	return func(ctx context.Context, c *client, from string, args []string) error {
		if len(args) != len(fields)+1 {
			return errUsage
		}
		body := map[string]string{}
		if from != "" {
			body["address"] = from
		}
		for i, field := range fields {
			v, err := amount(args[i+1])
			if err != nil {
				return err
			}
			body[field] = v
		}
		return post(ctx, c, "/v1/pools/"+args[0]+"/"+route, body)
	}
}

func swap(ctx context.Context, c *client, from string, args []string) error {
	if len(args) != 4 {
		return errUsage
	}
	in, err := amount(args[2])
	if err != nil {
		return err
	}
	minOut, err := amount(args[3])
	if err != nil {
		return err
	}
	body := map[string]string{"assetIn": args[1], "amountIn": in, "minAmountOut": minOut}
	if from != "" {
		body["address"] = from
	}
	return post(ctx, c, "/v1/pools/"+args[0]+"/swap", body)
}

func liquidate(ctx context.Context, c *client, from string, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	body := map[string]string{}
	if from != "" {
		body["address"] = from
	}
	return post(ctx, c, "/v1/pools/"+args[0]+"/liquidate/"+args[1], body)
}

func createExchange(ctx context.Context, c *client, _ string, args []string) error {
	if len(args) != 3 && len(args) != 4 {
		return errUsage
	}
	liquidityFee, err := amount(args[1])
	if err != nil {
		return err
	}
	protocolFee, err := amount(args[2])
	if err != nil {
		return err
	}
	body := map[string]string{"id": args[0], "liquidityFeeBps": liquidityFee, "protocolFeeBps": protocolFee}
	if len(args) == 4 {
		body["admin"] = args[3]
	}
	return post(ctx, c, "/v1/exchanges", body)
}

func createPool(ctx context.Context, c *client, _ string, args []string) error {
	if len(args) != 3 {
		return errUsage
	}
	return post(ctx, c, "/v1/pools", map[string]string{"exchange": args[0], "assetA": args[1], "assetB": args[2]})
}

func faucet(ctx context.Context, c *client, _ string, args []string) error {
	if len(args) != 3 {
		return errUsage
	}
	v, err := amount(args[2])
	if err != nil {
		return err
	}
	return post(ctx, c, "/v1/faucet", map[string]string{"address": args[0], "asset": args[1], "amount": v})
}

// printResult prints one key per line, grouping the digits of amounts.
func printResult(out map[string]interface{}) {
	keys := make([]string, 0, len(out))
	width := 0
	for k := range out {
		keys = append(keys, k)
		if len(k) > width {
			width = len(k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("%-*s  %s\n", width, k, render(out[k]))
	}
}

func render(v interface{}) string {
	s, ok := v.(string)
	if !ok {
		return fmt.Sprint(v)
	}
	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		return printer.Sprintf("%d", n)
	}
	return s
}

func runExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	configPath := fs.String("config", defaultConfig, "path to the falld configuration file")
	out := fs.String("out", "journal.parquet", "parquet file to write")
	_ = fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	dsn := cfg.JournalDSN()
	if dsn == "" {
		return journal.ErrDSNRequired
	}
	j, err := journal.Open(dsn)
	if err != nil {
		return err
	}
	defer j.Close()
	count, err := j.ExportParquet(context.Background(), *out)
	if err != nil {
		return err
	}
	printer.Printf("exported %d journal entries to %s\n", count, *out)
	return nil
}

func runToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	configPath := fs.String("config", defaultConfig, "path to the falld configuration file")
	subject := fs.String("subject", "", "address the token authorises")
	scope := fs.String("scope", "", "space separated scopes, e.g. admin")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	_ = fs.Parse(args)

	addr, err := crypto.DecodeAddress(*subject)
	if err != nil {
		return fmt.Errorf("subject: %w", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	secret := strings.TrimSpace(cfg.Auth.HMACSecret)
	if secret == "" {
		if secret, err = promptSecret(); err != nil {
			return err
		}
	}
	token, err := middleware.IssueToken([]byte(secret), addr, cfg.Auth.Issuer, cfg.Auth.Audience, strings.Fields(*scope), *ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func promptSecret() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("auth secret not configured and stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, "HMAC secret: ")
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read secret: %w", err)
	}
	secret := strings.TrimSpace(string(raw))
	if secret == "" {
		return "", errors.New("empty secret")
	}
	return secret, nil
}

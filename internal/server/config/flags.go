package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/tasksync/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-r string   Redis address (host:port)
//	-o string   comma-separated CORS origin allow-list
//	-w int      rate limit window, minutes
//	-m int      request budget per window for API routes
//	-n int      request budget per window for auth routes
//
// Notes:
//   - The function first filters os.Args to only the flags it recognizes
//     using flagx.FilterArgs, avoiding collisions with other components.
//   - The window flag is accepted as an integer in minutes and then
//     converted to a time.Duration value.
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-r", "-o", "-w", "-m", "-n"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "redis address")

	origins := fs.String("o", strings.Join(config.AllowedOrigins, ","), "allowed CORS origins (comma-separated)")
	window := fs.Int("w", int(config.RateLimitWindow.Minutes()), "rate limit window (in minutes)")

	fs.IntVar(&config.RateLimitMax, "m", config.RateLimitMax, "rate limit max requests per window")
	fs.IntVar(&config.AuthRateLimitMax, "n", config.AuthRateLimitMax, "auth rate limit max requests per window")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AllowedOrigins = strings.Split(*origins, ",")
	config.RateLimitWindow = time.Duration(*window) * time.Minute
}

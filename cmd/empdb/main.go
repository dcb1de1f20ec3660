// Command empdb fetches the employee table through one connection handle
// and prints it, or serves it over HTTP with -serve.
//
//	empdb [flags] [user] [pass] [//host:port/service] [cap] [batch]
package main

import (
	"context"
	"os"

	"github.com/koustreak/empdb/internal/app"
)

func main() {
	os.Exit(app.Main(context.Background(), os.Args[1:], os.Getenv, os.Stdout, os.Stderr))
}

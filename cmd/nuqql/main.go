package main

import (
	"flag"
	"fmt"

	"go.uber.org/fx"

	"github.com/nuqql/nuqql/internal/app"
)

func main() {
	dirFlag := flag.String("dir", "", "working directory (default ~/.config/nuqql)")
	sortFlag := flag.String("sort", "", "conversation sort key: last_send, last_used or num_send")
	versionFlag := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Println("nuqql " + app.Version)
		return
	}

	// fx's own log output would corrupt the terminal UI.
	a := fx.New(
		app.Module(app.Params{BaseDir: *dirFlag, Sort: *sortFlag}),
		fx.NopLogger,
	)
	a.Run()
}

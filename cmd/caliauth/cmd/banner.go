package cmd

import (
	"fmt"
	"io"
)

const banner = `
   ____    _    _     ___    ____                        _
  / ___|  / \  | |   |_ _|  / ___|  ___  _   _ _ __   __| |
 | |     / _ \ | |    | |   \___ \ / _ \| | | | '_ \ / _` + "`" + ` |
 | |___ / ___ \| |___ | |    ___) | (_) | |_| | | | | (_| |
  \____/_/   \_\_____|___|  |____/ \___/ \__,_|_| |_|\__,_|

`

func printBanner(w io.Writer) {
	fmt.Fprintf(w, "\x1b[34m%s\x1b[0m", banner)
	fmt.Fprintf(w, "\x1b[32m  Admin Authentication - Version %s\x1b[0m\n\n", Version)
}

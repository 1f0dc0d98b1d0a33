// Command httpd runs the example HTTP service on either the net/http or
// the fasthttp transport.
//
// Configuration is read from defaults, an optional .env file, a YAML file
// and HTTPD_ environment variables, in that order. Flags on the serve
// command win over all of them.
package main

import "os"

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}

// auction-watch polls auction marketplace listings for configured monitors,
// detects new items and price changes, and pushes Telegram notifications.
package main

import "auction-watch/internal/cli"

func main() {
	cli.Execute()
}

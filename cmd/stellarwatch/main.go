// Command stellarwatch streams payments, balance changes and account creation
// for one Stellar account from Horizon, printing one JSON object per line.
package main

func main() {
	Execute()
}

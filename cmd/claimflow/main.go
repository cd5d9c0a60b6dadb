// Command claimflow files and decides insurance claims.
package main

func main() {
	Execute()
}

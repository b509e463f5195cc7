package main

import "cogbot/internal/bot"

func main() {
	bot.Run()
}

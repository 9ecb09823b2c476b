// Command play is a terminal front-end for the BookGame server: it drives
// the turn controller and renders each turn through the presentation
// sequencer, typewriter pacing included.
package main

import (
	"bufio"
	"cmp"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	_ "github.com/joho/godotenv/autoload"

	"github.com/Javier1112/BookGame/pkg/books"
	"github.com/Javier1112/BookGame/pkg/client"
	"github.com/Javier1112/BookGame/pkg/game"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	labelStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	faintStyle  = lipgloss.NewStyle().Faint(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func main() {
	ctx := context.Background()
	api := client.NewAPI(cmp.Or(os.Getenv("BOOKGAME_API"), "http://localhost:8788"))

	turns := make(chan client.GameState, 1)
	fails := make(chan string, 1)
	settled := make(chan struct{}, 1)

	ctrl := client.NewController(api, client.Events{
		OnTurn: func(st client.GameState) { turns <- st },
		OnBusy: func(msg string) { fails <- msg },
		OnError: func(err error) {
			fails <- err.Error()
		},
	})

	// current is written by the main loop before Present and read by the
	// sequencer's timer callbacks afterwards; the sequencer's own lock
	// orders the two.
	var current client.GameState
	var printedRunes int
	seq := client.NewSequencer(client.DefaultDelays(), client.SequencerEvents{
		OnText: func(shown string) {
			runes := []rune(shown)
			fmt.Print(string(runes[printedRunes:]))
			printedRunes = len(runes)
		},
		OnOption: func(revealed int) {
			if revealed >= 1 && revealed <= len(current.Options) {
				opt := current.Options[revealed-1]
				fmt.Printf("  %s %s\n", labelStyle.Render(opt.Label+")"), opt.Text)
			}
		},
		OnSettled: func() {
			select {
			case settled <- struct{}{}:
			default:
			}
		},
	})

	reader := bufio.NewScanner(os.Stdin)
	fmt.Println(titleStyle.Render("SHNU Playbrary"))
	title := chooseBook(reader)
	if !ctrl.Start(ctx, title) {
		fmt.Println(errorStyle.Render("无法开始游戏。"))
		os.Exit(1)
	}
	fmt.Println(faintStyle.Render("正在生成第 1 回合……"))

	for {
		select {
		case st := <-turns:
			current = st
			printedRunes = 0
			fmt.Printf("\n%s\n", headerStyle.Render(
				fmt.Sprintf("第 %d / %d 回合 · %s", st.Round, game.TotalRounds, st.CharacterName)))
			fmt.Println(faintStyle.Render("插图: " + st.ImageURL))
			seq.Present(st.SceneDescription, len(st.Options))

		case msg := <-fails:
			fmt.Println("\n" + errorStyle.Render(msg))
			if ctrl.State() == nil {
				os.Exit(1)
			}
			// Restore the previous scene so the player can pick again.
			seq.Finish()

		case <-settled:
			fmt.Println()
			st := ctrl.State()
			if st == nil {
				continue
			}
			if st.IsGameOver {
				printEnding(*st)
				return
			}
			opt, ok := readChoice(reader, seq, *st)
			if !ok {
				return
			}
			if !ctrl.Choose(ctx, opt) {
				fmt.Println(faintStyle.Render("操作过快，请稍候……"))
				continue
			}
			printedRunes = 0
			fmt.Println(faintStyle.Render(fmt.Sprintf("正在生成第 %d 回合……", st.Round+1)))
		}
	}
}

func chooseBook(reader *bufio.Scanner) string {
	fmt.Println("请选择一本书（输入编号或书名）：")
	for i, b := range books.Presets {
		fmt.Printf("  %s %s\n", labelStyle.Render(strconv.Itoa(i+1)+")"), b.Title)
	}
	for {
		fmt.Print("> ")
		if !reader.Scan() {
			os.Exit(0)
		}
		input := strings.TrimSpace(reader.Text())
		if input == "" {
			continue
		}
		if idx, err := strconv.Atoi(input); err == nil && idx >= 1 && idx <= len(books.Presets) {
			return books.Presets[idx-1].Title
		}
		return input
	}
}

func readChoice(reader *bufio.Scanner, seq *client.Sequencer, st client.GameState) (game.Option, bool) {
	for {
		fmt.Print("你的选择 (A/B/C) > ")
		if !reader.Scan() {
			return game.Option{}, false
		}
		input := strings.ToUpper(strings.TrimSpace(reader.Text()))
		for i, opt := range st.Options {
			if strings.EqualFold(opt.Label, input) && seq.CanActivate(i) {
				return opt, true
			}
		}
		fmt.Println(faintStyle.Render("请输入 A、B 或 C。"))
	}
}

func printEnding(st client.GameState) {
	if st.IsVictory {
		fmt.Println(titleStyle.Render("🎉 你走完了全部五个回合！"))
	} else {
		fmt.Println(headerStyle.Render("📖 故事在此收束。"))
	}
	fmt.Println(faintStyle.Render("在图书馆继续这个故事: " + st.LibraryLink))
}

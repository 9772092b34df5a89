package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"media-library/config"
	"media-library/library"
	"media-library/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath, dbPath string

	cmd := &cobra.Command{
		Use:           "medialib",
		Short:         "Interactive media library console",
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if dbPath != "" {
				cfg.Database.Path = dbPath
			}
			logger.Initialize(cfg.Log.Level, cfg.Log.Format)

			manager, err := cfg.OpenManager(logger.WithComponent("library"))
			if err != nil {
				return fmt.Errorf("error opening database: %w", err)
			}
			defer manager.Close()

			runConsole(bufio.NewScanner(os.Stdin), manager)
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", os.Getenv("LIBRARY_CONFIG"), "path to YAML config file")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (overrides config)")
	return cmd
}

// readPassword securely reads a password with masking
func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", err
	}
	fmt.Println() // Add newline after password input
	return strings.TrimSpace(string(bytePassword)), nil
}

// authenticateUser prompts for and verifies the member's password
func authenticateUser(mgr *library.LibraryManager, member *library.Member) error {
	password, err := readPassword(fmt.Sprintf("Password for %s: ", member.Name))
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	return mgr.AuthenticateMember(member.ID, password)
}

func runConsole(scanner *bufio.Scanner, manager *library.LibraryManager) {
	fmt.Println("Welcome to the Media Library!")
	fmt.Println("Available commands:")
	fmt.Println("  Items: add book, add dvd, add magazine, remove item, list items, search media")
	fmt.Println("  Members: add member, remove member, list members, search members, suspend member, activate member, reset password")
	fmt.Println("  Circulation: loan, return, list loans, overdue")
	fmt.Println("  Reservations: reserve, fulfill reservation, list reservations, cancel reservation")
	fmt.Println("  System: exit")
	fmt.Println()
	fmt.Println("Tips:")
	fmt.Println("  • IDs can be shortened to any unique prefix")

	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		cmd := strings.TrimSpace(scanner.Text())

		switch cmd {
		case "":
		case "add book":
			handleAddBook(scanner, manager)
		case "add dvd":
			handleAddDvd(scanner, manager)
		case "add magazine":
			handleAddMagazine(scanner, manager)
		case "remove item":
			handleRemoveItem(scanner, manager)
		case "list items":
			printItems(manager, manager.SearchMedia(""))
		case "search media":
			handleSearchMedia(scanner, manager)
		case "add member":
			handleAddMember(scanner, manager)
		case "remove member":
			handleRemoveMember(scanner, manager)
		case "list members":
			printMembers(manager.SearchMembers(""))
		case "search members":
			handleSearchMembers(scanner, manager)
		case "suspend member":
			handleSetActive(scanner, manager, false)
		case "activate member":
			handleSetActive(scanner, manager, true)
		case "reset password":
			handleResetPassword(scanner, manager)
		case "loan":
			handleLoan(scanner, manager)
		case "return":
			handleReturn(scanner, manager)
		case "list loans":
			handleListLoans(scanner, manager)
		case "overdue":
			handleOverdue(manager)
		case "reserve":
			handleReserve(scanner, manager)
		case "fulfill reservation":
			handleFulfill(scanner, manager)
		case "list reservations":
			handleListReservations(scanner, manager)
		case "cancel reservation":
			handleCancelReservation(scanner, manager)
		case "exit":
			fmt.Println("Goodbye!")
			return
		default:
			fmt.Println("Unknown command. Type one of the available commands listed above.")
		}
	}
}

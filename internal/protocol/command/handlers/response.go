package handlers

import (
	"fmt"
	"strings"
)

// ============================================================================
// Outcomes
// ============================================================================

// Outcome identifies the result of a command. Every response sent to a
// client is rendered from exactly one Outcome.
type Outcome int

const (
	OutcomeHelp Outcome = iota
	OutcomeInvalidCommand
	OutcomeBadInput

	// Authentication
	OutcomeLoggedIn
	OutcomeAlreadyLoggedIn
	OutcomeUnknownUser
	OutcomeWrongPassword
	OutcomeLoggedOut
	OutcomeLoginRequired
	OutcomeAdminRequired

	// User management
	OutcomeRegistered
	OutcomeUsernameUnavailable
	OutcomeRegisterInvalid
	OutcomeUserDeleted
	OutcomeUserNotFound

	// Sandbox
	OutcomeListing
	OutcomeDirectoryChanged
	OutcomeIncorrectDirectory
	OutcomeDirectoryCreated
	OutcomeDirectoryPresent
	OutcomeInvalidName
	OutcomePathIsFile
	OutcomePathIsDirectory

	// Files
	OutcomeFileRead
	OutcomeReadWrongPath
	OutcomeWriteNewPath
	OutcomeWriteExisting
)

var outcomeNames = map[Outcome]string{
	OutcomeHelp:                "help",
	OutcomeInvalidCommand:      "invalid_command",
	OutcomeBadInput:            "bad_input",
	OutcomeLoggedIn:            "logged_in",
	OutcomeAlreadyLoggedIn:     "already_logged_in",
	OutcomeUnknownUser:         "unknown_user",
	OutcomeWrongPassword:       "wrong_password",
	OutcomeLoggedOut:           "logged_out",
	OutcomeLoginRequired:       "login_required",
	OutcomeAdminRequired:       "admin_required",
	OutcomeRegistered:          "registered",
	OutcomeUsernameUnavailable: "username_unavailable",
	OutcomeRegisterInvalid:     "register_invalid",
	OutcomeUserDeleted:         "user_deleted",
	OutcomeUserNotFound:        "user_not_found",
	OutcomeListing:             "listing",
	OutcomeDirectoryChanged:    "directory_changed",
	OutcomeIncorrectDirectory:  "incorrect_directory",
	OutcomeDirectoryCreated:    "directory_created",
	OutcomeDirectoryPresent:    "directory_present",
	OutcomeInvalidName:         "invalid_name",
	OutcomePathIsFile:          "path_is_file",
	OutcomePathIsDirectory:     "path_is_directory",
	OutcomeFileRead:            "file_read",
	OutcomeReadWrongPath:       "read_wrong_path",
	OutcomeWriteNewPath:        "write_new_path",
	OutcomeWriteExisting:       "write_existing",
}

// String returns the snake_case name used in logs and metric labels.
func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// ============================================================================
// Templates
// ============================================================================

// helpText is the response to the commands verb.
var helpText = strings.Join([]string{
	"",
	"-----   Commands are as follows   -----",
	"Commands                                    | Description",
	"register <username> <password> <privileges> | Register a new user.",
	"login <username> <password>                 | Login.",
	"delete <username> <password>                | Delete the user with <username> (Only for admin).",
	"list                                        | Print all file and folders.",
	"change_folder <name>                        | Change current folder to <name>.",
	"read_file <name>                            | Read file with <name>.",
	"write_file <name> <input>                   | Write <input> to file <name>.",
	"create_folder <name>                        | Create a new folder with <name>.",
}, "\n")

// templates maps each outcome to its response text. Templates with verbs are
// rendered with the arguments given to Render.
var templates = map[Outcome]string{
	OutcomeHelp:           helpText,
	OutcomeInvalidCommand: "Invalid command",
	OutcomeBadInput:       "Check your input again",

	OutcomeLoggedIn:        "\nYou have logged in successfully.",
	OutcomeAlreadyLoggedIn: "\nYo, slow down buddy, you already logged in there!",
	OutcomeUnknownUser:     "Yo, Check your username. Its not registered yet.",
	OutcomeWrongPassword:   "\nyo, Wrong password buddy!",
	OutcomeLoggedOut:       "\nYep, You logged out there.",
	OutcomeLoginRequired:   "\nYou must be logged in to proceed.",
	OutcomeAdminRequired:   "\nYou must be admin to execute this command.",

	OutcomeRegistered:          "\nRegistration Successfully done.\nYou are good to do login.",
	OutcomeUsernameUnavailable: "\nUsername not available.\nChoose Different Username.",
	OutcomeRegisterInvalid:     "\nInvalid Username / Password Entered.",
	OutcomeUserDeleted:         "\nUser %s deleted successfully.",
	OutcomeUserNotFound:        "\nNo user found with username %s.",

	OutcomeListing:            "\n%s",
	OutcomeDirectoryChanged:   "\nChanged current folder to %s.",
	OutcomeIncorrectDirectory: "\nIncorrect folder, check the name with list.",
	OutcomeDirectoryCreated:   "\nFolder created successfully.",
	OutcomeDirectoryPresent:   "\nFolder already exists.",
	OutcomeInvalidName:        "\nInvalid name, use a single file or folder name.",
	OutcomePathIsFile:         "\nA file with that name already exists.",
	OutcomePathIsDirectory:    "\nA folder with that name already exists.",

	OutcomeFileRead:      "\nRead from character %d:\n%s",
	OutcomeReadWrongPath: "\nNo such file in the current folder.",
	OutcomeWriteNewPath:  "\nCreated a new file and wrote the input.",
	OutcomeWriteExisting: "\nFile exists, appended the input on a new line.",
}

// Render returns the response text of o. args fill the template's verbs.
func Render(o Outcome, args ...any) string {
	tmpl, ok := templates[o]
	if !ok {
		return templates[OutcomeInvalidCommand]
	}
	if len(args) == 0 {
		return tmpl
	}
	return fmt.Sprintf(tmpl, args...)
}

// ============================================================================
// Response
// ============================================================================

// Response is the result of one command.
type Response struct {
	// Outcome is the kind of result, used for logging and metrics
	Outcome Outcome

	// Text is the exact payload written to the client
	Text string

	// Close asks the connection to close after Text is written
	Close bool
}

// NewResponse renders o into a Response.
func NewResponse(o Outcome, args ...any) *Response {
	return &Response{Outcome: o, Text: Render(o, args...)}
}

package command

import (
	"errors"
	"fmt"
	"strings"
)

// maxReroutes bounds alias rewriting; each alias rewrites to a canonical
// keyword, so more than one hop means a rewrite loop.
const maxReroutes = 2

// ParseScript splits a script into statements and parses each into a command.
// Order is preserved. The first malformed statement fails the whole script.
func ParseScript(script string) ([]Command, error) {
	statements := SplitStatements(script)
	commands := make([]Command, 0, len(statements))
	for _, statement := range statements {
		cmd, err := ParseCommand(statement)
		if err != nil {
			return nil, err
		}
		commands = append(commands, cmd)
	}
	return commands, nil
}

// SplitStatements trims lines, discards "//" comment lines and splits on blank
// lines.
func SplitStatements(script string) []string {
	var statements []string
	var current []string
	flush := func() {
		if len(current) > 0 {
			statements = append(statements, strings.Join(current, "\n"))
			current = current[:0]
		}
	}
	for _, raw := range strings.Split(script, "\n") {
		line := strings.TrimSpace(raw)
		if strings.HasPrefix(line, "//") {
			continue
		}
		if line == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()
	return statements
}

// ParseCommand parses exactly one statement. Errors are *ParseError values that
// carry the statement verbatim.
func ParseCommand(statement string) (Command, error) {
	cmd, err := parseStatement(statement, 0)
	if err != nil {
		return nil, &ParseError{Statement: statement, Err: err}
	}
	return cmd, nil
}

func parseStatement(text string, reroutes int) (Command, error) {
	if reroutes > maxReroutes {
		return nil, errors.New("too many alias rewrites")
	}
	s := newScanner(text)
	if !s.accept('.') {
		return nil, errors.New("script isn't a command")
	}
	keyword := strings.ToLower(s.word())

	var (
		cmd Command
		err error
	)
	switch keyword {
	case "create":
		cmd, err = parseCreate(s, text, reroutes)
	case "create-or-alter":
		cmd, err = parseCreateOrAlter(s)
	case "create-merge":
		cmd, err = parseCreateMerge(s, text, reroutes)
	case "alter":
		cmd, err = parseAlter(s, text, reroutes)
	case "alter-merge":
		cmd, err = parseAlterMerge(s, text, reroutes)
	case "drop":
		cmd, err = parseDrop(s)
	case "delete":
		cmd, err = parseDelete(s)
	default:
		return nil, fmt.Errorf("unrecognized command '.%s'", keyword)
	}
	if err != nil {
		return nil, err
	}
	if !s.eof() {
		return nil, s.errorf("unexpected trailing text")
	}
	return cmd, nil
}

// reroute rewrites the first occurrence of an alias keyword and re-parses the
// whole statement. The re-parse consumes the input, so s is moved to its end.
func reroute(s *scanner, text, alias, canonical string, reroutes int) (Command, error) {
	idx := strings.Index(strings.ToLower(text), alias)
	if idx < 0 {
		return nil, fmt.Errorf("script should contain '%s'", alias)
	}
	cmd, err := parseStatement(text[:idx]+canonical+text[idx+len(alias):], reroutes+1)
	if err != nil {
		return nil, err
	}
	s.pos = len(s.src)
	return cmd, nil
}

func parseCreate(s *scanner, text string, reroutes int) (Command, error) {
	switch object := strings.ToLower(s.word()); object {
	case "table":
		return parseCreateTable(s)
	case "tables":
		return parseCreateTables(s)
	case "function":
		return parseCreateFunction(s)
	case "merge":
		// ".create merge tables" is the bulk form of ".create-merge table".
		if err := s.expectWord("tables"); err != nil {
			return nil, err
		}
		cmd, err := parseStatement(".create tables "+s.rest(), reroutes+1)
		if err != nil {
			return nil, err
		}
		s.pos = len(s.src)
		return cmd, nil
	default:
		return nil, &UnsupportedCommandKindError{Keyword: ".create", Kind: object}
	}
}

func parseCreateOrAlter(s *scanner) (Command, error) {
	if object := strings.ToLower(s.word()); object != "function" {
		return nil, &UnsupportedCommandKindError{Keyword: ".create-or-alter", Kind: object}
	}
	return parseCreateFunction(s)
}

func parseCreateMerge(s *scanner, text string, reroutes int) (Command, error) {
	switch object := strings.ToLower(s.peekWord()); object {
	case "table", "tables":
		return reroute(s, text, "create-merge", "create", reroutes)
	default:
		return nil, &UnsupportedCommandKindError{Keyword: ".create-merge", Kind: object}
	}
}

func parseAlter(s *scanner, text string, reroutes int) (Command, error) {
	switch object := strings.ToLower(s.peekWord()); object {
	case "function":
		return reroute(s, text, "alter", "create-or-alter", reroutes)
	case "table", "database":
		mark := s.pos
		s.word()
		if _, err := s.name(); err != nil {
			return nil, err
		}
		if s.peek() == '(' {
			// ".alter table T (cols)" sets the full schema, like a create.
			return reroute(s, text, "alter", "create", reroutes)
		}
		s.pos = mark
		entityType, name, policy, err := parsePolicyTarget(s, ".alter")
		if err != nil {
			return nil, err
		}
		if policy != "retention" {
			return nil, &UnsupportedCommandKindError{Keyword: ".alter " + string(entityType), Kind: "policy " + policy}
		}
		return parseAlterRetentionPolicy(s, entityType, name)
	default:
		return nil, &UnsupportedCommandKindError{Keyword: ".alter", Kind: object}
	}
}

func parseAlterMerge(s *scanner, text string, reroutes int) (Command, error) {
	if object := strings.ToLower(s.word()); object != "table" {
		return nil, &UnsupportedCommandKindError{Keyword: ".alter-merge", Kind: object}
	}
	name, err := s.name()
	if err != nil {
		return nil, err
	}
	switch {
	case s.acceptWord("column-docstrings"):
		return parseColumnDocStrings(s, name)
	case s.peek() == '(':
		return reroute(s, text, "alter-merge", "create", reroutes)
	default:
		return nil, &UnsupportedCommandKindError{Keyword: ".alter-merge table", Kind: s.peekWord()}
	}
}

func parseDrop(s *scanner) (Command, error) {
	switch object := strings.ToLower(s.word()); object {
	case "table":
		return parseDropTable(s)
	case "tables":
		return parseDropTables(s)
	case "function":
		return parseDropFunction(s)
	case "functions":
		return parseDropFunctions(s)
	default:
		return nil, &UnsupportedCommandKindError{Keyword: ".drop", Kind: object}
	}
}

func parseDelete(s *scanner) (Command, error) {
	entityType, name, policy, err := parsePolicyTarget(s, ".delete")
	if err != nil {
		return nil, err
	}
	if policy != "retention" {
		return nil, &UnsupportedCommandKindError{Keyword: ".delete " + string(entityType), Kind: "policy " + policy}
	}
	return NewDeleteRetentionPolicy(entityType, name)
}

package discord

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// ErrMissingArgument is returned when a required positional argument is absent.
var ErrMissingArgument = errors.New("missing argument")

// channelMention matches <#123456> in message content.
var channelMention = regexp.MustCompile(`<#(\d+)>`)

// userMention matches <@123456> and the nickname form <@!123456>.
var userMention = regexp.MustCompile(`<@!?(\d+)>`)

// parseCommandTag parses a struct tag value (e.g. "count,optional") into its
// name and a set of flags.
func parseCommandTag(tag string) (string, map[string]bool) {
	parts := strings.Split(tag, ",")
	flags := make(map[string]bool)
	for _, part := range parts[1:] {
		part = strings.TrimSpace(part)
		if part != "" {
			flags[part] = true
		}
	}
	return strings.TrimSpace(parts[0]), flags
}

// parseCommand splits content into a lowercase command name and its
// whitespace separated arguments. ok is false when content does not start
// with prefix or has nothing after it.
func parseCommand(prefix, content string) (name string, args []string, ok bool) {
	if !strings.HasPrefix(content, prefix) {
		return "", nil, false
	}
	fields := strings.Fields(content[len(prefix):])
	if len(fields) == 0 {
		return "", nil, false
	}
	return strings.ToLower(fields[0]), fields[1:], true
}

// decodeArgs fills req, a pointer to a struct, from positional args. Fields
// take arguments in declaration order and are named by their "command" tag.
// Fields are required unless tagged optional. Values are converted with
// mapstructure's weak typing, so "5" decodes into an int field and "five"
// fails. Integers are always read as base 10.
func decodeArgs(args []string, req interface{}) error {
	v := reflect.ValueOf(req)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("decodeArgs: req is not a pointer to struct")
	}
	t := v.Elem().Type()

	values := make(map[string]interface{})
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		name, flags := parseCommandTag(field.Tag.Get("command"))
		if name == "" {
			name = strings.ToLower(field.Name)
		}
		if i < len(args) {
			values[name] = args[i]
			continue
		}
		if !flags["optional"] {
			return fmt.Errorf("%w: %s", ErrMissingArgument, name)
		}
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "command",
		Result:           req,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.DecodeHookFuncKind(decimalInts),
	})
	if err != nil {
		return err
	}
	return decoder.Decode(values)
}

// decimalInts parses strings bound for signed integer fields in base 10.
// mapstructure's own conversion honours 0x, 0 and _ prefixes and separators.
func decimalInts(from, to reflect.Kind, data interface{}) (interface{}, error) {
	if from != reflect.String {
		return data, nil
	}
	var bits int
	switch to {
	case reflect.Int:
		bits = strconv.IntSize
	case reflect.Int8:
		bits = 8
	case reflect.Int16:
		bits = 16
	case reflect.Int32:
		bits = 32
	case reflect.Int64:
		bits = 64
	default:
		return data, nil
	}
	n, err := strconv.ParseInt(data.(string), 10, bits)
	if err != nil {
		return nil, fmt.Errorf("%q is not a whole number", data)
	}
	return n, nil
}

// firstChannelMention returns the ID of the first channel mentioned in content.
func firstChannelMention(content string) (string, bool) {
	m := channelMention.FindStringSubmatch(content)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// userMentionIDs returns the IDs of users mentioned in content, in text order.
func userMentionIDs(content string) []string {
	matches := userMention.FindAllStringSubmatch(content, -1)
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m[1])
	}
	return ids
}

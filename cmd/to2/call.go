package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/chazu/to2/server"
)

// handleCallCommand invokes a function on a running execution service.
// Arguments are JSON values.
// Usage:
//
//	to2 call localhost:8470 math::add 1 2
//	to2 call localhost:8470 geo::norm '{"x": 3, "y": 4}'
func handleCallCommand(args []string, opts options) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: to2 call <addr> <module::function> [json args...]")
	}
	configureLogging(opts, "", nil)

	addr := args[0]
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	module, function, err := splitQualified(args[1])
	if err != nil {
		return err
	}

	values := make([]any, 0, len(args)-2)
	for _, arg := range args[2:] {
		var v any
		if err := json.Unmarshal([]byte(arg), &v); err != nil {
			// A bare word is a string.
			v = arg
		}
		values = append(values, v)
	}
	msg, err := structpb.NewStruct(map[string]any{
		"module":   module,
		"function": function,
		"args":     values,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client := connect.NewClient[structpb.Struct, structpb.Struct](
		http.DefaultClient,
		strings.TrimSuffix(addr, "/")+server.InvokeProcedure,
		connect.WithProtoJSON(),
	)
	log.Debugf("calling %s::%s on %s", module, function, addr)
	res, err := client.CallUnary(ctx, connect.NewRequest(msg))
	if err != nil {
		return err
	}
	fmt.Println(res.Msg.GetFields()["display"].GetStringValue())
	return nil
}

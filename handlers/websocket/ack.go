package websocket

import (
	"fmt"
	"reflect"

	socketio "github.com/zishang520/socket.io/v2/socket"
)

type ackInvoker func(err error, payload map[string]any)

// extractAck splits a trailing client acknowledgement callback off the
// event arguments.
func extractAck(datas []any) (ackInvoker, []any) {
	if len(datas) == 0 {
		return nil, datas
	}
	ack := wrapAck(datas[len(datas)-1])
	if ack == nil {
		return nil, datas
	}
	return ack, datas[:len(datas)-1]
}

// wrapAck adapts any function value into an ackInvoker. Single-argument
// callbacks receive the error or the payload; two-argument callbacks receive
// both.
func wrapAck(candidate any) ackInvoker {
	if candidate == nil {
		return nil
	}
	fn := reflect.ValueOf(candidate)
	if fn.Kind() != reflect.Func {
		return nil
	}
	typ := fn.Type()

	return func(err error, payload map[string]any) {
		args := make([]reflect.Value, typ.NumIn())
		for i := range args {
			var v any
			switch {
			case typ.IsVariadic() && i == len(args)-1:
				if typ.In(i) == reflect.TypeOf([]any(nil)) {
					args[i] = reflect.ValueOf([]any{payload, errValue(err)})
				} else {
					args[i] = reflect.MakeSlice(typ.In(i), 0, 0)
				}
				continue
			case len(args) == 1 && err != nil:
				v = err
			case len(args) == 1, i == 1:
				v = payload
			case i == 0:
				v = err
			}
			args[i] = coerce(v, typ.In(i))
		}
		if typ.IsVariadic() {
			fn.CallSlice(args)
			return
		}
		fn.Call(args)
	}
}

func errValue(err error) any {
	if err == nil {
		return nil
	}
	return err.Error()
}

func coerce(value any, target reflect.Type) reflect.Value {
	if value == nil {
		return reflect.Zero(target)
	}
	rv := reflect.ValueOf(value)
	switch {
	case rv.Type().AssignableTo(target):
		return rv
	case rv.Type().ConvertibleTo(target):
		return rv.Convert(target)
	case target.Kind() == reflect.String:
		return reflect.ValueOf(fmt.Sprint(value)).Convert(target)
	}
	return reflect.Zero(target)
}

// respond calls the client's ack, if any, and also emits event so clients
// without ack support observe the outcome.
func respond(socket *socketio.Socket, ack ackInvoker, event string, payload map[string]any, err error) {
	if ack != nil {
		ack(err, payload)
	}
	if event != "" && payload != nil {
		_ = socket.Emit(event, payload)
	}
}

func errorPayload(err error) map[string]any {
	return map[string]any{
		"status": "error",
		"error":  err.Error(),
	}
}

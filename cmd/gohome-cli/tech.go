package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"google.golang.org/grpc"

	"github.com/joshp123/gohome-tech/plugins/tech"
)

func techCmd(ctx context.Context, conn *grpc.ClientConn, args []string, jsonOutput bool) {
	out := outputMode{json: jsonOutput}
	if len(args) == 0 {
		techUsage()
		os.Exit(2)
	}

	switch args[0] {
	case "zones", "list":
		resp := listTechZones(ctx, conn)
		if out.json {
			out.printJSON(resp)
			return
		}
		rows := [][]string{{"ZONE", "ID", "CURRENT", "TARGET", "HUMIDITY", "ACTION", "MODE"}}
		for _, zone := range resp.Zones {
			action := "-"
			if zone.HVACAction != nil {
				action = string(*zone.HVACAction)
			}
			humidity := "-"
			if zone.CurrentHumidity != nil {
				humidity = fmt.Sprintf("%d%%", *zone.CurrentHumidity)
			}
			rows = append(rows, []string{
				zone.Name,
				zone.UniqueID,
				formatCelsius(zone.CurrentTemperature),
				formatCelsius(zone.TargetTemperature),
				humidity,
				action,
				string(zone.HVACMode),
			})
		}
		out.table(rows)
	case "set":
		if len(args) < 3 {
			fatal("tech set", fmt.Errorf("usage: gohome-cli tech set <zone> <temp>"))
		}
		temp, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			fatal("tech set", fmt.Errorf("invalid temperature %q", args[2]))
		}
		uniqueID := resolveTechZone(ctx, conn, "tech set", args[1])

		var resp tech.CommandResponse
		invoke(ctx, conn, "tech set", techMethod("SetTemperature"), tech.SetTemperatureRequest{
			UniqueID:           uniqueID,
			TemperatureCelsius: &temp,
		}, &resp)
		if out.json {
			out.printJSON(map[string]any{"zone": args[1], "unique_id": uniqueID, "temperature_celsius": temp, "status": resp.Status})
			return
		}
		fmt.Printf("%s: %s -> %.1f°C\n", resp.Status, strings.ToLower(args[1]), temp)
	case "mode":
		if len(args) < 3 {
			fatal("tech mode", fmt.Errorf("usage: gohome-cli tech mode <zone> <heat|off>"))
		}
		mode := strings.ToLower(args[2])
		if mode != "heat" && mode != "off" {
			fatal("tech mode", fmt.Errorf("invalid mode %q (want heat or off)", args[2]))
		}
		uniqueID := resolveTechZone(ctx, conn, "tech mode", args[1])

		var resp tech.CommandResponse
		invoke(ctx, conn, "tech mode", techMethod("SetMode"), tech.SetModeRequest{UniqueID: uniqueID, Mode: mode}, &resp)
		if out.json {
			out.printJSON(map[string]any{"zone": args[1], "unique_id": uniqueID, "mode": mode, "status": resp.Status})
			return
		}
		fmt.Printf("%s: %s -> %s\n", resp.Status, strings.ToLower(args[1]), mode)
	default:
		techUsage()
		os.Exit(2)
	}
}

func techMethod(name string) string {
	return "/" + tech.ServiceName + "/" + name
}

func listTechZones(ctx context.Context, conn *grpc.ClientConn) tech.ListZonesResponse {
	var resp tech.ListZonesResponse
	invoke(ctx, conn, "tech list zones", techMethod("ListZones"), nil, &resp)
	return resp
}

// resolveTechZone accepts a unique id or a zone name.
func resolveTechZone(ctx context.Context, conn *grpc.ClientConn, action, input string) string {
	zones := listTechZones(ctx, conn)
	options := make(map[string]string, len(zones.Zones))
	for _, zone := range zones.Zones {
		if zone.UniqueID == input {
			return zone.UniqueID
		}
		options[zone.Name] = zone.UniqueID
	}
	uniqueID, err := resolveNamedID("zone", input, options)
	if err != nil {
		fatal(action, err)
	}
	return uniqueID
}

func formatCelsius(value *float64) string {
	if value == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f°C", *value)
}

func techUsage() {
	fmt.Println("gohome-cli tech <command>")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  zones")
	fmt.Println("  set <zone> <temp>")
	fmt.Println("  mode <zone> <heat|off>")
}

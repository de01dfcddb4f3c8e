package mcp

import (
	"context"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/ramarlina/mcptastic/pkg/geoip"
	"github.com/ramarlina/mcptastic/pkg/radio"
)

const (
	// ServerName is the name of the MCP server.
	ServerName = "mcptastic"
	// ServerVersion is the version of the MCP server.
	ServerVersion = "0.2.0"
	// DefaultAddress is the device address used when none is given.
	DefaultAddress = "meshtastic.local"
)

// ConfigFromEnv builds a handler config from the MCPTASTIC_*
// environment, for running the server without the CLI's config file.
func ConfigFromEnv() *HandlerConfig {
	address := os.Getenv("MCPTASTIC_ADDR")
	if address == "" {
		address = DefaultAddress
	}
	transport := radio.TransportTCP
	if tr := os.Getenv("MCPTASTIC_TRANSPORT"); tr == string(radio.TransportSerial) {
		transport = radio.TransportSerial
	}
	dbPath := os.Getenv("MCPTASTIC_DB")
	if dbPath == "" {
		dbPath = "meshtastic.db"
	}

	geoOpts := []geoip.Option{}
	if url := os.Getenv("MCPTASTIC_GEO_URL"); url != "" {
		geoOpts = append(geoOpts, geoip.WithGeoURL(url))
	}
	if url := os.Getenv("MCPTASTIC_ELEVATION_URL"); url != "" {
		geoOpts = append(geoOpts, geoip.WithElevationURL(url))
	}

	return &HandlerConfig{
		Address:   address,
		Transport: transport,
		DBPath:    dbPath,
		Geo:       geoip.New(geoOpts...),
	}
}

// Server wraps the MCP server with Meshtastic-specific functionality.
type Server struct {
	mcpServer *server.MCPServer
	manager   *radio.Manager
	handlers  *Handlers
}

// NewServer creates a new MCPtastic MCP server. A nil cfg falls back
// to ConfigFromEnv; the CLI passes a config resolved from its flags
// and the config file instead.
func NewServer(cfg *HandlerConfig) *Server {
	if cfg == nil {
		cfg = ConfigFromEnv()
	}

	// Shared device connection state
	manager := radio.NewManager()

	handlers := NewHandlers(manager, cfg)

	// Create MCP server
	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(true),
	)

	s := &Server{
		mcpServer: mcpServer,
		manager:   manager,
		handlers:  handlers,
	}

	// Register all tools
	s.registerTools()

	return s
}

// registerTools registers all Meshtastic tools with the MCP server.
func (s *Server) registerTools() {
	tools := ToolDefinitions()

	for _, tool := range tools {
		switch tool.Name {
		// Connection
		case "mesh_connect":
			s.mcpServer.AddTool(tool, s.handlers.HandleConnect)
		case "mesh_status":
			s.mcpServer.AddTool(tool, s.handlers.HandleStatus)
		case "mesh_scan_ports":
			s.mcpServer.AddTool(tool, s.handlers.HandleScanPorts)

		// Device
		case "mesh_device_info":
			s.mcpServer.AddTool(tool, s.handlers.HandleDeviceInfo)
		case "mesh_nodes":
			s.mcpServer.AddTool(tool, s.handlers.HandleNodes)
		case "mesh_set_owner":
			s.mcpServer.AddTool(tool, s.handlers.HandleSetOwner)
		case "mesh_channels":
			s.mcpServer.AddTool(tool, s.handlers.HandleChannels)
		case "mesh_export_config":
			s.mcpServer.AddTool(tool, s.handlers.HandleExportConfig)
		case "mesh_configure":
			s.mcpServer.AddTool(tool, s.handlers.HandleConfigure)
		case "mesh_version":
			s.mcpServer.AddTool(tool, s.handlers.HandleVersion)

		// Administration
		case "mesh_reboot":
			s.mcpServer.AddTool(tool, s.handlers.HandleReboot)
		case "mesh_shutdown":
			s.mcpServer.AddTool(tool, s.handlers.HandleShutdown)
		case "mesh_factory_reset":
			s.mcpServer.AddTool(tool, s.handlers.HandleFactoryReset)

		// Location
		case "mesh_position":
			s.mcpServer.AddTool(tool, s.handlers.HandlePosition)
		case "mesh_set_position":
			s.mcpServer.AddTool(tool, s.handlers.HandleSetPosition)
		case "mesh_send_position":
			s.mcpServer.AddTool(tool, s.handlers.HandleSendPosition)

		// Messaging
		case "mesh_send_text":
			s.mcpServer.AddTool(tool, s.handlers.HandleSendText)
		case "mesh_send_alert":
			s.mcpServer.AddTool(tool, s.handlers.HandleSendAlert)
		case "mesh_send_heartbeat":
			s.mcpServer.AddTool(tool, s.handlers.HandleSendHeartbeat)
		case "mesh_send_telemetry":
			s.mcpServer.AddTool(tool, s.handlers.HandleSendTelemetry)
		case "mesh_traceroute":
			s.mcpServer.AddTool(tool, s.handlers.HandleTraceroute)

		// Waypoints
		case "mesh_send_waypoint":
			s.mcpServer.AddTool(tool, s.handlers.HandleSendWaypoint)
		case "mesh_delete_waypoint":
			s.mcpServer.AddTool(tool, s.handlers.HandleDeleteWaypoint)
		case "mesh_waypoints":
			s.mcpServer.AddTool(tool, s.handlers.HandleWaypoints)
		}
	}
}

// Serve starts the MCP server on stdio.
func (s *Server) Serve() error {
	defer s.manager.Close()
	return server.ServeStdio(s.mcpServer)
}

// ServeContext starts the MCP server on stdio with a context.
func (s *Server) ServeContext(ctx context.Context) error {
	defer s.manager.Close()
	return server.ServeStdio(s.mcpServer, server.WithStdioContextFunc(func(_ context.Context) context.Context {
		return ctx
	}))
}

// GetMCPServer returns the underlying MCP server for testing.
func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

// GetManager returns the connection manager for testing.
func (s *Server) GetManager() *radio.Manager {
	return s.manager
}

// GetHandlers returns the handlers for testing.
func (s *Server) GetHandlers() *Handlers {
	return s.handlers
}

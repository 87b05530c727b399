package shogun

import "github.com/danmuck/shogunctl/internal/protocol/schema"

// Capture command names on the wire.
const (
	CmdCaptureName           = "CaptureServices.CaptureName"
	CmdSetCaptureName        = "CaptureServices.SetCaptureName"
	CmdCaptureDescription    = "CaptureServices.CaptureDescription"
	CmdSetCaptureDescription = "CaptureServices.SetCaptureDescription"
	CmdCaptureFolder         = "CaptureServices.CaptureFolder"
	CmdSetCaptureFolder      = "CaptureServices.SetCaptureFolder"
	CmdStartCapture          = "CaptureServices.StartCapture"
	CmdStopCapture           = "CaptureServices.StopCapture"
	CmdCancelCapture         = "CaptureServices.CancelCapture"
	CmdLatestCaptureName     = "CaptureServices.LatestCaptureName"
	CmdLatestCaptureState    = "CaptureServices.LatestCaptureState"
)

// Terminal command names on the wire.
const (
	CmdAppInfo      = "Terminal.AppInfo"
	CmdCheckSchemas = "Terminal.CheckSchemas"
)

// Callback names the host pushes when capture state changes.
const (
	CallbackCaptureNameChanged        = "CaptureServices.CaptureNameChangedCallback"
	CallbackCaptureFolderChanged      = "CaptureServices.CaptureFolderChangedCallback"
	CallbackCaptureDescriptionChanged = "CaptureServices.CaptureDescriptionChangedCallback"
	CallbackLatestCaptureNameChanged  = "CaptureServices.LatestCaptureNameChangedCallback"
	CallbackLatestCaptureStateChanged = "CaptureServices.LatestCaptureStateChangedCallback"
)

// NewCatalog builds the full command catalogue a terminal client needs for
// capture control.
func NewCatalog() *schema.Catalog {
	c := schema.NewCatalog()
	registerCaptureCommands(c)
	registerTerminalCommands(c)
	return c
}

func registerCaptureCommands(c *schema.Catalog) {
	str := func(name string) schema.Field { return schema.Field{Name: name, Kind: schema.KindString} }

	c.MustRegister(schema.CommandSpec{
		Name:    CmdCaptureName,
		Outputs: []schema.Field{str("name")},
	})
	c.MustRegister(schema.CommandSpec{
		Name:   CmdSetCaptureName,
		Inputs: []schema.Field{str("name")},
	})
	c.MustRegister(schema.CommandSpec{
		Name:    CmdCaptureDescription,
		Outputs: []schema.Field{str("description")},
	})
	c.MustRegister(schema.CommandSpec{
		Name:   CmdSetCaptureDescription,
		Inputs: []schema.Field{str("description")},
	})
	c.MustRegister(schema.CommandSpec{
		Name:    CmdCaptureFolder,
		Outputs: []schema.Field{str("folder")},
	})
	c.MustRegister(schema.CommandSpec{
		Name:   CmdSetCaptureFolder,
		Inputs: []schema.Field{str("folder")},
	})
	c.MustRegister(schema.CommandSpec{
		Name:    CmdStartCapture,
		Outputs: []schema.Field{{Name: "id", Kind: schema.KindUint}},
	})
	c.MustRegister(schema.CommandSpec{
		Name:   CmdStopCapture,
		Inputs: []schema.Field{{Name: "id", Kind: schema.KindUint}},
	})
	c.MustRegister(schema.CommandSpec{
		Name:   CmdCancelCapture,
		Inputs: []schema.Field{{Name: "id", Kind: schema.KindUint}},
	})
	c.MustRegister(schema.CommandSpec{
		Name:    CmdLatestCaptureName,
		Outputs: []schema.Field{str("name")},
	})
	c.MustRegister(schema.CommandSpec{
		Name:    CmdLatestCaptureState,
		Outputs: []schema.Field{{Name: "state", Kind: schema.KindInt}},
	})
}

func registerTerminalCommands(c *schema.Catalog) {
	c.MustRegister(schema.CommandSpec{
		Name: CmdAppInfo,
		Outputs: []schema.Field{
			{Name: "name", Kind: schema.KindString},
			{Name: "version", Kind: schema.KindString},
			{Name: "changeset", Kind: schema.KindString},
		},
	})
	c.MustRegister(schema.CommandSpec{
		Name: CmdCheckSchemas,
		Inputs: []schema.Field{
			{Name: "schemas", Kind: schema.KindList, Elem: &schema.Field{Kind: schema.KindString}},
		},
		Outputs: []schema.Field{
			{Name: "mismatches", Kind: schema.KindList, Elem: &schema.Field{Kind: schema.KindString}},
		},
	})
}

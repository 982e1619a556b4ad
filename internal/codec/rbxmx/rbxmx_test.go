package rbxmx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/grove/internal/codec"
	"github.com/agentic-research/grove/internal/snapshot"
)

const toolModel = `<roblox version="4">
  <Item class="Tool" referent="RBX0">
    <Properties>
      <string name="Name">Sword</string>
      <bool name="CanBeDropped">false</bool>
      <int name="Slot">3</int>
      <int64 name="Id">9007199254740993</int64>
      <float name="Weight">1.5</float>
      <double name="Ratio">0.125</double>
      <token name="Material">256</token>
      <Vector3 name="GripPos"><X>1</X><Y>-2</Y><Z>0.5</Z></Vector3>
      <Vector2 name="Offset"><X>4</X><Y>8</Y></Vector2>
      <Color3 name="Tint"><R>1</R><G>0.5</G><B>0</B></Color3>
      <Color3uint8 name="Glow">16711680</Color3uint8>
      <Content name="TextureId"><url>rbxassetid://42</url></Content>
      <BinaryString name="Tags">AAEC</BinaryString>
      <CoordinateFrame name="Grip"><X>0</X></CoordinateFrame>
    </Properties>
    <Item class="Script" referent="RBX1">
      <Properties>
        <string name="Name">Handler</string>
        <ProtectedString name="Source"><![CDATA[print("hi") -- <ok>]]></ProtectedString>
      </Properties>
    </Item>
  </Item>
</roblox>`

func TestDecode_Properties(t *testing.T) {
	root, err := Decode([]byte(toolModel))
	require.NoError(t, err)
	assert.Equal(t, codec.RootClass, root.ClassName)
	require.Len(t, root.Children, 1)

	tool := root.Children[0]
	assert.Equal(t, "Sword", tool.Name)
	assert.Equal(t, "Tool", tool.ClassName)
	assert.Equal(t, map[string]snapshot.Value{
		"CanBeDropped": snapshot.Bool(false),
		"Slot":         snapshot.Int32(3),
		"Id":           snapshot.Int64(9007199254740993),
		"Weight":       snapshot.Float32(1.5),
		"Ratio":        snapshot.Float64(0.125),
		"Material":     snapshot.Enum(256),
		"GripPos":      snapshot.Vector3{X: 1, Y: -2, Z: 0.5},
		"Offset":       snapshot.Vector2{X: 4, Y: 8},
		"Tint":         snapshot.Color3{R: 1, G: 0.5, B: 0},
		"Glow":         snapshot.Color3{R: 1, G: 0, B: 0},
		"TextureId":    snapshot.Content("rbxassetid://42"),
		"Tags":         snapshot.BinaryString{0, 1, 2},
	}, tool.Properties, "unknown property kinds are skipped")

	require.Len(t, tool.Children, 1)
	script := tool.Children[0]
	assert.Equal(t, "Handler", script.Name)
	assert.Equal(t, snapshot.String(`print("hi") -- <ok>`), script.Properties["Source"])
}

func TestDecode_MultipleTopLevel(t *testing.T) {
	root, err := Decode([]byte(`<roblox version="4">
		<Item class="Folder"><Properties><string name="Name">A</string></Properties></Item>
		<Item class="Model"><Properties><string name="Name">B</string></Properties></Item>
	</roblox>`))
	require.NoError(t, err)
	require.Len(t, root.Children, 2)
	assert.Equal(t, "A", root.Children[0].Name)
	assert.Equal(t, "Model", root.Children[1].ClassName)
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode([]byte(`<model></model>`))
	assert.ErrorIs(t, err, ErrNotModel)

	_, err = Decode([]byte(`<roblox><Item class="Folder">`))
	assert.Error(t, err)

	_, err = Decode([]byte(`<roblox><Item><Properties/></Item></roblox>`))
	assert.ErrorContains(t, err, "has no class")

	_, err = Decode([]byte(`<roblox><Item class="IntValue"><Properties><int name="Value">abc</int></Properties></Item></roblox>`))
	assert.ErrorContains(t, err, "IntValue.Value")
}

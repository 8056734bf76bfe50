package imaging

import (
	"fmt"
	"strings"

	"sjsage522/dealscout/pkg/errors"
)

const (
	bomSystemPrompt = "You are a footwear manufacturing BOM expert. Return ONLY valid JSON."

	bomPrompt = `Analyze the product and return its bill of materials as JSON:

{
  "product_name": "",
  "components": [
    {
      "name": "",
      "material": "",
      "finish": "",
      "quantity": 1
    }
  ]
}`

	describePrompt = `You are a footwear expert. Describe the footwear in the image in a concise, search-optimized way.

Return ONLY valid JSON with these fields:
- footwear_type
- material
- sole_type
- style
- gender
- short_search_description`

	topViewPrompt = `Produce a technical orthographic TOP VIEW of the footwear in the reference image.

- Keep every visible geometric feature: strap shape, cutouts, buckle position, sole outline and inner contours.
- Keep the proportions and layout of the source. Trace, do not redesign or simplify.
- Clean black line art on a white background, uniform line weight.
- No perspective, no shading, no texture. Suitable for CAD tracing.`

	sideViewPrompt = `Produce a technical orthographic SIDE VIEW of the footwear in the reference image.

Show the sole thickness profile, heel-to-toe drop, strap height and curvature, and the footbed contour.
Clean black line art on a white background. No perspective, no shading. Engineering linework suitable for CAD tracing.`
)

// Supported sizes map to sole lengths in 5 mm steps from 245 mm.
const (
	MinSize        = 5
	MaxSize        = 10
	baseSoleLength = 245
	soleStep       = 5
)

// SoleLengthMM converts a UK/India size to the sole length in millimetres.
func SoleLengthMM(size int) (int, error) {
	if size < MinSize || size > MaxSize {
		return 0, errors.NewValidation(errors.StageImage, fmt.Sprintf("unsupported size %d, expected %d to %d", size, MinSize, MaxSize))
	}
	return baseSoleLength + (size-MinSize)*soleStep, nil
}

// SizeAwarePrompt appends the manufacturing constraints for size to prompt.
func SizeAwarePrompt(prompt string, size int) (string, error) {
	mm, err := SoleLengthMM(size)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(strings.TrimSpace(prompt))
	b.WriteString("\n\nMANUFACTURING CONSTRAINTS:\n")
	fmt.Fprintf(&b, "- Footwear size: UK/India %d\n", size)
	fmt.Fprintf(&b, "- Sole length: %d mm (PRIMARY SCALE)\n", mm)
	b.WriteString("- Maintain realistic adult footwear proportions\n")
	b.WriteString("- Use millimeters only\n")
	return b.String(), nil
}

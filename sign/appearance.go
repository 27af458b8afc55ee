package sign

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // register JPEG format

	"github.com/digitorus/pdfsign/pobj"
)

// createAppearance builds the Form XObject a visible signature's
// Widget annotation points to via /AP /N, reserves its object number
// and returns it already framed for addObject. Appearance.Image
// selects an image-backed appearance; otherwise the signer's name is
// drawn as text.
func (context *SignContext) createAppearance(rect [4]float64) (uint32, []byte, error) {
	var (
		dict *pobj.Dictionary
		data []byte
		err  error
	)
	if len(context.SignData.Appearance.Image) > 0 {
		dict, data, err = context.createImageAppearance(rect)
	} else {
		dict, data, err = context.createTextAppearance(rect)
	}
	if err != nil {
		return 0, nil, err
	}

	dict.Set("Length", pobj.Integer(len(data)))

	objID := context.reserveObjectID()
	var buf bytes.Buffer
	ref := pobj.Reference{Num: objID, Gen: 0}
	if err := pobj.NewWriter(&buf).WriteObject(ref, &pobj.Stream{Dict: dict, Data: data, Ref: ref}); err != nil {
		return 0, nil, err
	}
	return objID, buf.Bytes(), nil
}

// appearanceDictionary builds the Form XObject dictionary fields
// shared by the text and image appearance streams; the caller sets
// /Length once the content stream bytes are known.
func appearanceDictionary(rectWidth, rectHeight float64, resources *pobj.Dictionary) *pobj.Dictionary {
	d := pobj.NewDictionary()
	d.Set("Type", pobj.Name("XObject"))
	d.Set("Subtype", pobj.Name("Form"))
	d.Set("FormType", pobj.Integer(1))
	d.Set("BBox", pobj.Array{pobj.Real(0), pobj.Real(0), pobj.Real(rectWidth), pobj.Real(rectHeight)})
	d.Set("Matrix", pobj.Array{pobj.Integer(1), pobj.Integer(0), pobj.Integer(0), pobj.Integer(1), pobj.Integer(0), pobj.Integer(0)})
	d.Set("Resources", resources)
	return d
}

func computeTextSizeAndPosition(text string, rectWidth, rectHeight float64) (float64, float64, float64) {
	// Calculate font size
	fontSize := rectHeight * 0.8                     // Use most of the height for the font
	textWidth := float64(len(text)) * fontSize * 0.5 // Approximate text width
	if textWidth > rectWidth {
		fontSize = rectWidth / (float64(len(text)) * 0.5) // Adjust font size to fit text within rect width
	}

	// Center text horizontally and vertically
	textWidth = float64(len(text)) * fontSize * 0.5
	textX := (rectWidth - textWidth) / 2
	if textX < 0 {
		textX = 0
	}
	textY := (rectHeight-fontSize)/2 + fontSize/3 // Approximate vertical centering

	return fontSize, textX, textY
}

func drawText(buffer *bytes.Buffer, text string, fontSize float64, x, y float64) {
	buffer.WriteString("q\n")                                   // Save graphics state
	buffer.WriteString("BT\n")                                  // Begin text
	buffer.WriteString(fmt.Sprintf("/F1 %.2f Tf\n", fontSize))  // Set font and size
	buffer.WriteString(fmt.Sprintf("%.2f %.2f Td\n", x, y))     // Set text position
	buffer.WriteString("0.2 0.2 0.6 rg\n")                      // Set font color to ballpoint-like color (RGB)
	buffer.WriteString(fmt.Sprintf("%s Tj\n", pdfString(text))) // Show text
	buffer.WriteString("ET\n")                                  // End text
	buffer.WriteString("Q\n")                                   // Restore graphics state
}

func drawImage(buffer *bytes.Buffer, rectWidth, rectHeight float64) {
	// We save state twice on purpose due to the cm operation
	buffer.WriteString("q\n") // Save graphics state
	buffer.WriteString("q\n") // Save before image transformation
	buffer.WriteString(fmt.Sprintf("%.2f 0 0 %.2f 0 0 cm\n", rectWidth, rectHeight))
	buffer.WriteString("/Im1 Do\n") // Draw image
	buffer.WriteString("Q\n")       // Restore after transformation
	buffer.WriteString("Q\n")       // Restore graphics state
}

func (context *SignContext) createTextAppearance(rect [4]float64) (*pobj.Dictionary, []byte, error) {
	rectWidth := rect[2] - rect[0]
	rectHeight := rect[3] - rect[1]

	if rectWidth < 1 || rectHeight < 1 {
		return nil, nil, fmt.Errorf("invalid rectangle dimensions: width %.2f and height %.2f must be greater than 0", rectWidth, rectHeight)
	}

	text := context.SignData.Signature.Info.Name

	fontSize, textX, textY := computeTextSizeAndPosition(text, rectWidth, rectHeight)

	var content bytes.Buffer
	drawText(&content, text, fontSize, textX, textY)

	font := pobj.NewDictionary()
	font.Set("Type", pobj.Name("Font"))
	font.Set("Subtype", pobj.Name("Type1"))
	font.Set("BaseFont", pobj.Name("Times-Roman"))

	fonts := pobj.NewDictionary()
	fonts.Set("F1", font)

	resources := pobj.NewDictionary()
	resources.Set("Font", fonts)

	return appearanceDictionary(rectWidth, rectHeight, resources), content.Bytes(), nil
}

func (context *SignContext) createImageAppearance(rect [4]float64) (*pobj.Dictionary, []byte, error) {
	rectWidth := rect[2] - rect[0]
	rectHeight := rect[3] - rect[1]

	if rectWidth < 1 || rectHeight < 1 {
		return nil, nil, fmt.Errorf("invalid rectangle dimensions: width %.2f and height %.2f must be greater than 0", rectWidth, rectHeight)
	}

	imageObjectID, imageObj, err := context.createImageXObject()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create image XObject: %w", err)
	}
	if _, err := context.addObject(imageObjectID, imageObj); err != nil {
		return nil, nil, fmt.Errorf("failed to add image object: %w", err)
	}

	var content bytes.Buffer
	drawImage(&content, rectWidth, rectHeight)

	xobjects := pobj.NewDictionary()
	xobjects.Set("Im1", pobj.Reference{Num: imageObjectID, Gen: 0})

	resources := pobj.NewDictionary()
	resources.Set("XObject", xobjects)

	return appearanceDictionary(rectWidth, rectHeight, resources), content.Bytes(), nil
}

// createImageXObject decodes just enough of Appearance.Image to learn
// its pixel dimensions, reserves an object number for it and returns
// it as a DCTDecode Image XObject already framed for addObject. The
// JPEG bytes are stored verbatim: DCTDecode is a passthrough filter,
// so no re-encoding is needed.
func (context *SignContext) createImageXObject() (uint32, []byte, error) {
	imageData := context.SignData.Appearance.Image

	img, _, err := image.DecodeConfig(bytes.NewReader(imageData))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to decode image configuration: %w", err)
	}

	dict := pobj.NewDictionary()
	dict.Set("Type", pobj.Name("XObject"))
	dict.Set("Subtype", pobj.Name("Image"))
	dict.Set("Width", pobj.Integer(img.Width))
	dict.Set("Height", pobj.Integer(img.Height))
	dict.Set("ColorSpace", pobj.Name("DeviceRGB"))
	dict.Set("BitsPerComponent", pobj.Integer(8))
	dict.Set("Filter", pobj.Name("DCTDecode"))
	dict.Set("Length", pobj.Integer(len(imageData)))

	objID := context.reserveObjectID()
	var buf bytes.Buffer
	ref := pobj.Reference{Num: objID, Gen: 0}
	if err := pobj.NewWriter(&buf).WriteObject(ref, &pobj.Stream{Dict: dict, Data: imageData, Ref: ref}); err != nil {
		return 0, nil, err
	}
	return objID, buf.Bytes(), nil
}

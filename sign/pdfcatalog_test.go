package sign

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/digitorus/pdf"
)

var catalogTests = []struct {
	file            string
	wantPagesRef    string
	wantNamesRef    string
	wantSigFlags    map[CertType]string
}{
	{
		file:         "../testfiles/testfile20.pdf",
		wantPagesRef: "/Pages 3 0 R",
		wantSigFlags: map[CertType]string{
			CertificationSignature: "/SigFlags 3",
			UsageRightsSignature:   "/SigFlags 1",
			ApprovalSignature:      "/SigFlags 3",
		},
	},
	{
		file:         "../testfiles/testfile21.pdf",
		wantPagesRef: "/Pages 9 0 R",
		wantNamesRef: "/Names 6 0 R",
		wantSigFlags: map[CertType]string{
			CertificationSignature: "/SigFlags 3",
			UsageRightsSignature:   "/SigFlags 1",
			ApprovalSignature:      "/SigFlags 3",
		},
	},
}

func TestCreateCatalog(t *testing.T) {
	for _, testFile := range catalogTests {
		for certType, wantSigFlags := range testFile.wantSigFlags {
			t.Run(fmt.Sprintf("%s_%s", testFile.file, certType.String()), func(st *testing.T) {
				inputFile, err := os.Open(testFile.file)
				if err != nil {
					st.Errorf("Failed to load test PDF")
					return
				}

				finfo, err := inputFile.Stat()
				if err != nil {
					st.Errorf("Failed to load test PDF")
					return
				}
				size := finfo.Size()

				rdr, err := pdf.NewReader(inputFile, size)
				if err != nil {
					st.Errorf("Failed to load test PDF")
					return
				}

				context := SignContext{
					PDFReader: rdr,
					InputFile: inputFile,
					VisualSignData: VisualSignData{
						ObjectId: uint32(rdr.XrefInformation.ItemCount),
					},
					CatalogData: CatalogData{
						ObjectId: uint32(rdr.XrefInformation.ItemCount) + 1,
					},
					SignData: SignData{
						Signature: SignDataSignature{
							CertType:   certType,
							DocMDPPerm: AllowFillingExistingFormFieldsAndSignaturesPerms,
						},
					},
				}

				catalog, err := context.createCatalog()
				if err != nil {
					st.Errorf("%s", err.Error())
					return
				}

				wantHeader := strconv.Itoa(int(context.CatalogData.ObjectId)) + " 0 obj\r\n"
				if !strings.HasPrefix(catalog, wantHeader) {
					st.Errorf("catalog should start with %q, got %q", wantHeader, catalog[:min(len(catalog), len(wantHeader)+5)])
				}
				if !strings.HasSuffix(catalog, "\r\nendobj\r\n") {
					st.Errorf("catalog should end with endobj framing, got %q", catalog[max(0, len(catalog)-15):])
				}
				if !strings.Contains(catalog, "/Type /Catalog") {
					st.Errorf("catalog missing /Type /Catalog")
				}
				if !strings.Contains(catalog, testFile.wantPagesRef) {
					st.Errorf("catalog missing %q, got %q", testFile.wantPagesRef, catalog)
				}
				if testFile.wantNamesRef != "" && !strings.Contains(catalog, testFile.wantNamesRef) {
					st.Errorf("catalog missing %q, got %q", testFile.wantNamesRef, catalog)
				}
				wantVisualRef := strconv.Itoa(int(context.VisualSignData.ObjectId)) + " 0 R"
				if !strings.Contains(catalog, wantVisualRef) {
					st.Errorf("catalog missing visual signature field reference %q, got %q", wantVisualRef, catalog)
				}
				if !strings.Contains(catalog, wantSigFlags) {
					st.Errorf("catalog missing %q, got %q", wantSigFlags, catalog)
				}
			})
		}
	}
}

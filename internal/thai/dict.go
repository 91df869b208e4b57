package thai

// Embedded dictionary for greedy longest-match segmentation. Covers common
// function words plus vocabulary typical of business and academic documents.
// Small by design: unknown words still come out as single tokens, which is
// good enough for substring-style keyword matching.

var maxWordLen int

func init() {
	for w := range words {
		if n := len([]rune(w)); n > maxWordLen {
			maxWordLen = n
		}
	}
}

var words = buildWordSet([]string{
	// Function words
	"และ", "หรือ", "แต่", "ของ", "ที่", "ใน", "บน", "กับ", "จาก", "ถึง",
	"โดย", "เพื่อ", "ตาม", "ระหว่าง", "ภายใน", "ภายใต้", "เกี่ยวกับ",
	"เป็น", "คือ", "มี", "ได้", "ให้", "ไม่", "ไป", "มา", "อยู่", "จะ",
	"ต้อง", "ควร", "อาจ", "ยัง", "แล้ว", "ก็", "ด้วย", "นี้", "นั้น",
	"ทั้งหมด", "บาง", "ทุก", "แต่ละ", "อื่น", "เดียว", "กัน", "เอง",
	"อะไร", "ใคร", "ที่ไหน", "เมื่อไหร่", "อย่างไร", "ทำไม", "เท่าไหร่",
	"กี่", "ไหน", "หรือไม่",
	// Query verbs
	"สรุป", "อธิบาย", "บอก", "แสดง", "เปรียบเทียบ", "วิเคราะห์", "ค้นหา",
	"ตรวจสอบ", "คำนวณ", "ระบุ", "แนะนำ", "ช่วย",
	// Document and business vocabulary
	"เอกสาร", "รายงาน", "ข้อมูล", "เนื้อหา", "หัวข้อ", "บทที่", "หน้า",
	"ตาราง", "รูปภาพ", "ภาพรวม", "รายละเอียด", "ผลลัพธ์", "ผลการ",
	"สัญญา", "ข้อตกลง", "เงื่อนไข", "นโยบาย", "ระเบียบ", "กฎหมาย",
	"บริษัท", "องค์กร", "หน่วยงาน", "พนักงาน", "ลูกค้า", "ผู้ใช้",
	"โครงการ", "แผนงาน", "เป้าหมาย", "วัตถุประสงค์", "ขั้นตอน", "กระบวนการ",
	"งบประมาณ", "ค่าใช้จ่าย", "รายได้", "ราคา", "จำนวน", "ยอดรวม",
	"ภาษี", "การเงิน", "บัญชี", "ธนาคาร", "การลงทุน", "ดอกเบี้ย",
	"สินค้า", "บริการ", "การขาย", "การตลาด", "คุณภาพ", "มาตรฐาน",
	// Time
	"วันที่", "เดือน", "ปี", "เวลา", "วันนี้", "พรุ่งนี้", "เมื่อวาน",
	"สัปดาห์", "ไตรมาส", "ประจำปี",
	// Technology
	"ระบบ", "เทคโนโลยี", "คอมพิวเตอร์", "ซอฟต์แวร์", "เครือข่าย",
	"ฐานข้อมูล", "อินเทอร์เน็ต", "เว็บไซต์", "แอปพลิเคชัน", "ปัญญาประดิษฐ์",
	// Common nouns and verbs
	"ประเทศ", "ไทย", "ภาษา", "คน", "งาน", "เรื่อง", "ส่วน", "กลุ่ม",
	"ประเภท", "ลักษณะ", "ความหมาย", "ความสำคัญ", "ปัญหา", "สาเหตุ",
	"วิธีการ", "แนวทาง", "ตัวอย่าง", "กรณี", "สถานการณ์", "ผลกระทบ",
	"การพัฒนา", "การปรับปรุง", "การเปลี่ยนแปลง", "การดำเนินการ",
	"การจัดการ", "การบริหาร", "การศึกษา", "การวิจัย", "การทดสอบ",
	"ใช้", "ทำ", "สร้าง", "พัฒนา", "เพิ่ม", "ลด", "เปลี่ยน", "เริ่ม",
	"จบ", "ส่ง", "รับ", "เขียน", "อ่าน", "เรียน", "สอน", "ซื้อ", "ขาย",
	"จ่าย", "เก็บ", "เลือก", "กำหนด", "จัดทำ", "ดำเนินการ", "ปรับปรุง",
})

func buildWordSet(list []string) map[string]struct{} {
	m := make(map[string]struct{}, len(list))
	for _, w := range list {
		m[w] = struct{}{}
	}
	return m
}
